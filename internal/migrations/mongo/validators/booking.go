package validators

import "go.mongodb.org/mongo-driver/bson"

var integer = []string{"int", "long"}

var BookingValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{
			"user_id",
			"hotel_id",
			"check_in",
			"check_out",
			"nights",
			"total_price",
			"status",
			"contact_details",
			"booking_snapshot",
			"notification",
			"created_at",
		},
		"additionalProperties": true,

		"properties": bson.M{
			"_id": bson.M{
				"bsonType": "objectId",
			},

			"user_id": bson.M{
				"bsonType":  "string",
				"minLength": 1,
			},

			"hotel_id": bson.M{
				"bsonType": integer,
				"minimum":  1,
			},

			"check_in": bson.M{
				"bsonType": "date",
			},

			"check_out": bson.M{
				"bsonType": "date",
			},

			"nights": bson.M{
				"bsonType": integer,
				"minimum":  1,
			},

			"total_price": bson.M{
				"bsonType": integer,
				"minimum":  0,
			},

			"status": bson.M{
				"bsonType": "string",
				"enum": []string{
					"PENDING",
					"CONFIRMED",
					"PAID",
					"CANCELLED",
				},
			},

			"contact_details": bson.M{
				"bsonType": "object",
				"required": []string{"full_name", "email", "phone"},
				"properties": bson.M{
					"full_name": bson.M{"bsonType": "string", "minLength": 2, "maxLength": 100},
					"email":     bson.M{"bsonType": "string", "maxLength": 254},
					"phone":     bson.M{"bsonType": "string", "pattern": `^\+[1-9]\d{1,14}$`},
				},
			},

			"booking_snapshot": bson.M{
				"bsonType": "object",
				"required": []string{"hotel", "room"},
			},

			"payment": bson.M{
				"bsonType": "object",
				"required": []string{"status", "external_session_id", "reconciled_at"},
			},

			"notification": bson.M{
				"bsonType": "object",
				"required": []string{"published", "attempts"},
			},

			"created_at": bson.M{
				"bsonType": "date",
			},
		},
	},
}

var LeaseValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{"_id", "token", "expires_at", "created_at"},
		"properties": bson.M{
			"_id":        bson.M{"bsonType": "string", "minLength": 1},
			"token":      bson.M{"bsonType": "string", "minLength": 1},
			"expires_at": bson.M{"bsonType": "date"},
			"created_at": bson.M{"bsonType": "date"},
		},
	},
}
