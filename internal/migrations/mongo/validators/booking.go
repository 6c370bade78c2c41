package validators

import "go.mongodb.org/mongo-driver/bson"

var integer = []string{"int", "long"}

var BookingValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{
			"station_id",
			"date",
			"start_time",
			"duration",
			"charger_type",
			"status",
			"car_number",
			"created_at",
		},
		"additionalProperties": true,

		"properties": bson.M{
			"_id": bson.M{
				"bsonType":  "string",
				"minLength": 1,
			},

			"station_id": bson.M{
				"bsonType": integer,
				"minimum":  1,
			},

			"date": bson.M{
				"bsonType": "string",
				"pattern":  `^\d{4}-\d{2}-\d{2}$`,
			},

			"start_time": bson.M{
				"bsonType": "string",
				"pattern":  `^([01]\d|2[0-3]):[0-5]\d$`,
			},

			"duration": bson.M{
				"bsonType": integer,
				"minimum":  1,
				"maximum":  12,
			},

			"charger_type": bson.M{
				"bsonType":  "string",
				"minLength": 2,
				"maxLength": 50,
			},

			"status": bson.M{
				"enum": []string{"upcoming", "active", "completed", "cancelled"},
			},

			"total_cost": bson.M{
				"bsonType": []string{"double", "int", "long"},
				"minimum":  0,
			},

			"car_number": bson.M{
				"bsonType":  "string",
				"minLength": 4,
				"maxLength": 12,
			},

			"slot_id": bson.M{
				"bsonType": []string{"int", "long", "null"},
			},

			"created_at": bson.M{
				"bsonType": "date",
			},
		},
	},
}

var BookingLockValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType":             "object",
		"required":             []string{"_id", "expires_at", "created_at"},
		"additionalProperties": true,
		"properties": bson.M{
			"_id":        bson.M{"bsonType": "string"},
			"expires_at": bson.M{"bsonType": "date"},
			"created_at": bson.M{"bsonType": "date"},
		},
	},
}
