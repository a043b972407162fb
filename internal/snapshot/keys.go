package snapshot

const (
	// IniFilename is the index file at the root of a snapshot directory.
	IniFilename = "snapshot.ini"

	// snapshot.ini keys
	SnapshotSectionName = "snapshot"
	VersionKey          = "version"
	DescriptionKey      = "description"
	WidthKey            = "width"

	ModulesSectionName = "modules"

	DumpSectionPrefix = "dump"
	DumpAddressKey    = "address"
	DumpLengthKey     = "length"
	DumpOffsetKey     = "offset"
	DumpFileKey       = "file"
	DumpSpaceKey      = "space"

	// Dump spaces
	SpaceProcess = "process"
	SpaceGuest   = "guest"
)
