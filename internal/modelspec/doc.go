// Package modelspec compiles CUE model files into a model.Model.
//
// A model file declares entities and relationships as two top-level
// structs:
//
//	entity: Orders: {
//		table: "Orders"
//		key: ["Id"]
//		properties: {
//			Id:         "int32"
//			CustomerId: "int32?"
//			Total:      {type: "decimal", column: "total_amount"}
//		}
//		navigations: Customer: relationship: "CustomerOrders"
//	}
//
//	relationship: CustomerOrders: {
//		principal: "Customers"
//		dependent: "Orders"
//		keys: [{principal: "Id", dependent: "CustomerId"}]
//	}
//
// A property is either a type name or a struct with type, column and
// nullable fields. A trailing "?" on a type name marks the property
// nullable. Properties keep their declaration order, which is the column
// order of every projection of the entity.
//
// Files are checked against the #Model schema in schema.go before they are
// compiled, so misspelled fields are reported with their CUE position.
package modelspec
