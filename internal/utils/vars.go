package utils

import "regexp"

const (
	ToolUserAgent = "grabd/1.0"
	ChunkSize     = 64 * 1024 // image stream read size
)

var unsafeFilenameChars = regexp.MustCompile(`[\\/*?:"<>|]`)
