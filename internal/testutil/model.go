package testutil

import "github.com/roach88/querylift/internal/model"

// Shop returns the fixture model shared by package tests:
//
//	Customers 1-* Orders      (optional, CustomerId nullable)
//	Customers 1-* Reviews     (required)
//	Warehouses 1-* Orders     (composite alternate key Code+Region, Region nullable)
//	Customers 1-* Animals     (Animals is a Cat/Dog table-per-concrete-type hierarchy)
//	Products                  (Tags is a primitive int collection)
//	Pairs                     (two nullable ints and a nullable bool)
func Shop() *model.Model {
	m, err := model.New(ShopShapes(), ShopRelationships())
	if err != nil {
		panic(err)
	}
	return m
}

// ShopShapes returns the shapes of the Shop model.
func ShopShapes() []model.EntityShape {
	return []model.EntityShape{
		{
			Name:  "Customers",
			Table: "Customers",
			Properties: []model.Property{
				{Name: "Id", Type: model.Int32},
				{Name: "Name", Type: model.String, Nullable: true},
				{Name: "City", Type: model.String, Nullable: true},
				{Name: "IsActive", Type: model.Bool},
			},
			Key: []string{"Id"},
			Navigations: []model.Navigation{
				{Name: "Orders", Relationship: "CustomerOrders", FromPrincipal: true},
				{Name: "Reviews", Relationship: "CustomerReviews", FromPrincipal: true},
				{Name: "Pets", Relationship: "CustomerPets", FromPrincipal: true},
			},
		},
		{
			Name:  "Orders",
			Table: "Orders",
			Properties: []model.Property{
				{Name: "Id", Type: model.Int32},
				{Name: "CustomerId", Type: model.Int32, Nullable: true},
				{Name: "Total", Type: model.Decimal},
				{Name: "PlacedAt", Type: model.DateTime},
				{Name: "Status", Type: model.Enum(32, false)},
				{Name: "WarehouseCode", Type: model.String, Nullable: true},
				{Name: "WarehouseRegion", Type: model.String, Nullable: true},
			},
			Key: []string{"Id"},
			Navigations: []model.Navigation{
				{Name: "Customer", Relationship: "CustomerOrders"},
				{Name: "Warehouse", Relationship: "WarehouseOrders"},
			},
		},
		{
			Name:  "Reviews",
			Table: "Reviews",
			Properties: []model.Property{
				{Name: "Id", Type: model.Int32},
				{Name: "CustomerId", Type: model.Int32},
				{Name: "Rating", Type: model.Int32},
				{Name: "Body", Type: model.String, Nullable: true},
			},
			Key: []string{"Id"},
			Navigations: []model.Navigation{
				{Name: "Customer", Relationship: "CustomerReviews"},
			},
		},
		{
			Name:  "Warehouses",
			Table: "Warehouses",
			Properties: []model.Property{
				{Name: "Id", Type: model.Int32},
				{Name: "Code", Type: model.String},
				{Name: "Region", Type: model.String, Nullable: true},
				{Name: "Name", Type: model.String},
			},
			Key: []string{"Id"},
			Navigations: []model.Navigation{
				{Name: "Orders", Relationship: "WarehouseOrders", FromPrincipal: true},
			},
		},
		{
			Name:     "Animals",
			Abstract: true,
			Properties: []model.Property{
				{Name: "Id", Type: model.Int32},
				{Name: "Name", Type: model.String},
				{Name: "Lives", Type: model.Int32},
				{Name: "Breed", Type: model.String, Nullable: true},
				{Name: "OwnerId", Type: model.Int32, Nullable: true},
			},
			Key: []string{"Id"},
			Subtypes: []model.SubtypeMapping{
				{Name: "Cat", Table: "Cats", Properties: []string{"Id", "Name", "Lives", "OwnerId"}},
				{Name: "Dog", Table: "Dogs", Properties: []string{"Id", "Name", "Breed", "OwnerId"}},
			},
			Navigations: []model.Navigation{
				{Name: "Owner", Relationship: "CustomerPets"},
			},
		},
		{
			Name:  "Products",
			Table: "Products",
			Properties: []model.Property{
				{Name: "Id", Type: model.Int32},
				{Name: "Name", Type: model.String},
				{Name: "Tags", Type: model.ArrayOf(model.Int32)},
				{Name: "Price", Type: model.Decimal, Nullable: true},
			},
			Key: []string{"Id"},
		},
		{
			Name:  "Pairs",
			Table: "Pairs",
			Properties: []model.Property{
				{Name: "Id", Type: model.Int32},
				{Name: "A", Type: model.Int32, Nullable: true},
				{Name: "B", Type: model.Int32, Nullable: true},
				{Name: "P", Type: model.Bool, Nullable: true},
			},
			Key: []string{"Id"},
		},
	}
}

// ShopRelationships returns the relationships of the Shop model.
func ShopRelationships() []model.Relationship {
	return []model.Relationship{
		{
			Name:        "CustomerOrders",
			Principal:   "Customers",
			Dependent:   "Orders",
			Keys:        []model.KeyPair{{Principal: "Id", Dependent: "CustomerId"}},
			Cardinality: model.CardinalityMany,
		},
		{
			Name:        "CustomerReviews",
			Principal:   "Customers",
			Dependent:   "Reviews",
			Keys:        []model.KeyPair{{Principal: "Id", Dependent: "CustomerId"}},
			Cardinality: model.CardinalityMany,
			Required:    true,
		},
		{
			Name:      "WarehouseOrders",
			Principal: "Warehouses",
			Dependent: "Orders",
			Keys: []model.KeyPair{
				{Principal: "Code", Dependent: "WarehouseCode"},
				{Principal: "Region", Dependent: "WarehouseRegion"},
			},
			Cardinality: model.CardinalityMany,
		},
		{
			Name:        "CustomerPets",
			Principal:   "Customers",
			Dependent:   "Animals",
			Keys:        []model.KeyPair{{Principal: "Id", Dependent: "OwnerId"}},
			Cardinality: model.CardinalityMany,
		},
	}
}
