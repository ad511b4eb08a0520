package modelspec

// schemaSource closes the accepted model syntax.
const schemaSource = `
#TypeName: string

#Property: {
	type:      #TypeName
	column?:   string
	nullable?: bool
}

#Navigation: {
	relationship:   string
	fromPrincipal?: bool
}

#Subtype: {
	schema?:        string
	table:          string
	discriminator?: string
	properties?: [...string]
}

#Entity: {
	schema?:        string
	table?:         string
	abstract?:      bool
	discriminator?: string
	key: [...string]
	properties: [string]: #TypeName | #Property
	navigations?: [string]: #Navigation
	subtypes?: [string]: #Subtype
}

#KeyPair: {
	principal: string
	dependent: string
}

#Relationship: {
	principal: string
	dependent: string
	keys: [#KeyPair, ...#KeyPair]
	cardinality?:       "many" | "one" | "optional-one"
	required?:          bool
	nullKeysDistinct?:  bool
	principalSubtypes?: [...string]
	dependentSubtypes?: [...string]
}

#Model: {
	entity: [string]: #Entity
	relationship?: [string]: #Relationship
}
`
