package mcp

import "github.com/mark3labs/mcp-go/mcp"

var saveToolDef = mcp.NewTool("stash_save",
	mcp.WithDescription("Acquire one or more source links and save every media item they yield. Links are separated by whitespace. A failed link is reported and the rest of the batch still runs."),
	mcp.WithString("links",
		mcp.Required(),
		mcp.Description("One or more source links, separated by whitespace."),
	),
)

var getToolDef = mcp.NewTool("stash_get",
	mcp.WithDescription("Fetch a single saved record by ID."),
	mcp.WithString("id",
		mcp.Required(),
		mcp.Description("The record ID."),
	),
	mcp.WithBoolean("include_bytes",
		mcp.Description("Include the base64 payload in the response. Off by default; payloads can be large."),
	),
)

var listToolDef = mcp.NewTool("stash_list",
	mcp.WithDescription("List saved records, newest first, without payload bytes. Optionally filter by username and/or media type."),
	mcp.WithString("username",
		mcp.Description("Only records saved from this username."),
	),
	mcp.WithString("type",
		mcp.Description("Only records of this media type: Reel, Story, Post, or Unknown."),
	),
)

var usersToolDef = mcp.NewTool("stash_users",
	mcp.WithDescription("List the distinct usernames present in the stash, sorted."),
)

var deleteToolDef = mcp.NewTool("stash_delete",
	mcp.WithDescription("Permanently delete one record by ID."),
	mcp.WithString("id",
		mcp.Required(),
		mcp.Description("The record ID."),
	),
)

var wipeToolDef = mcp.NewTool("stash_wipe",
	mcp.WithDescription("Permanently delete every record. There is no undo."),
	mcp.WithBoolean("confirm",
		mcp.Required(),
		mcp.Description("Must be true to confirm the wipe."),
	),
)

var exportToolDef = mcp.NewTool("stash_export",
	mcp.WithDescription("Export the whole stash, payload bytes included, to a JSONL file."),
	mcp.WithString("path",
		mcp.Description("Destination file path. Defaults to a timestamped file under the exports directory."),
	),
)

var importToolDef = mcp.NewTool("stash_import",
	mcp.WithDescription("Import a JSONL export file. The whole file is parsed before anything is written; records sharing an ID with a stored record replace it."),
	mcp.WithString("path",
		mcp.Required(),
		mcp.Description("Path to the export file."),
	),
)
