// Package todo defines tasks, their lifecycle, and their persisted forms.
//
// # Task File Format
//
// Each account's tasks live in one text file, one task per line, fields
// separated by '|':
//
//	description|dueDate|priority|status|createdAt|completedAt
//	Buy milk|2099-01-01|1|0|1748772000|0
//
// priority is 1 (Low), 2 (Medium) or 3 (High); status is 0 (Pending),
// 1 (In Progress) or 2 (Completed). Timestamps are epoch seconds and
// completedAt is 0 until the task is first completed. Lines with fewer than
// six fields or unparsable numbers are skipped on load.
//
// # Lifecycle
//
// A task may move between any two statuses. The first move into Completed
// records CompletedAt; later moves never clear it.
//
// # Export Documents
//
// Export and import use a JSON document validated against ExportSchema:
//
//	{
//	  "schema_version": 1,
//	  "user_id": "alice123",
//	  "exported_at": "2025-06-01T10:00:00Z",
//	  "tasks": [
//	    {
//	      "description": "Buy milk",
//	      "due_date": "2099-01-01",
//	      "priority": "low",
//	      "status": "pending",
//	      "created_at": "2025-06-01T09:00:00Z"
//	    }
//	  ]
//	}
package todo
