package outbox

import "example.com/fittracker/internal/events"

const workoutRecordedSchema = `{
  "type": "object",
  "title": "WorkoutRecorded",
  "properties": {
    "workout_id": {"type": "string"},
    "user_id": {"type": "string"},
    "email": {"type": "string"},
    "type": {"type": "string"},
    "duration": {"type": "integer", "minimum": 1},
    "calories": {"type": "integer", "minimum": 1},
    "date": {"type": "string", "format": "date-time"},
    "occurred_at": {"type": "string", "format": "date-time"}
  },
  "required": ["workout_id", "user_id", "email", "type", "duration", "calories", "date", "occurred_at"],
  "additionalProperties": false
}`

const workoutDeletedSchema = `{
  "type": "object",
  "title": "WorkoutDeleted",
  "properties": {
    "workout_id": {"type": "string"},
    "user_id": {"type": "string"},
    "email": {"type": "string"},
    "occurred_at": {"type": "string", "format": "date-time"}
  },
  "required": ["workout_id", "user_id", "email", "occurred_at"],
  "additionalProperties": false
}`

// schemaCatalog maps event type to the JSON schema registered for its subject.
var schemaCatalog = map[string]string{
	events.TypeWorkoutCreated: workoutRecordedSchema,
	events.TypeWorkoutUpdated: workoutRecordedSchema,
	events.TypeWorkoutDeleted: workoutDeletedSchema,
}
