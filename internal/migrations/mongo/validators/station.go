package validators

import "go.mongodb.org/mongo-driver/bson"

var StationValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType":             "object",
		"required":             []string{"_id", "name", "location", "charger_types", "price_per_kwh"},
		"additionalProperties": true,
		"properties": bson.M{
			"_id":      bson.M{"bsonType": integer, "minimum": 1},
			"name":     bson.M{"bsonType": "string", "minLength": 2},
			"location": bson.M{"bsonType": "string"},
			"image":    bson.M{"bsonType": "string"},
			"charger_types": bson.M{
				"bsonType": "array",
				"items":    bson.M{"bsonType": "string"},
			},
			"price_per_kwh": bson.M{"bsonType": []string{"double", "int", "long"}, "minimum": 0},
			"latitude":      bson.M{"bsonType": "double", "minimum": -90, "maximum": 90},
			"longitude":     bson.M{"bsonType": "double", "minimum": -180, "maximum": 180},
		},
	},
}
