package format

// ContentFlags is a bitset of root-entry content flags. V1-V3 store 32 bits
// on disk; V4 widens the field to 40 bits, so the in-memory type is uint64.
type ContentFlags uint64

// Well-known content flag bits (WoW root format).
const (
	ContentFlagLoadOnWindows ContentFlags = 1 << 0
	ContentFlagLoadOnMacOS   ContentFlags = 1 << 1
	ContentFlagLowViolence   ContentFlags = 1 << 2
	ContentFlagDoNotLoad     ContentFlags = 1 << 3
	ContentFlagUpdatePlugin  ContentFlags = 1 << 4
	ContentFlagNoNameHash    ContentFlags = 1 << 28
	ContentFlagUncommon      ContentFlags = 1 << 29
	ContentFlagBundle        ContentFlags = 1 << 30
	ContentFlagNoCompression ContentFlags = 1 << 31
	ContentFlagInstall       ContentFlags = ContentFlagLoadOnWindows | ContentFlagLoadOnMacOS
)

// Has reports whether all bits in mask are set in f.
func (f ContentFlags) Has(mask ContentFlags) bool { return f&mask == mask }

// LocaleFlags is a bitset of root-entry locale flags (always 32 bits on disk).
type LocaleFlags uint32

// Well-known locale flag bits.
const (
	LocaleEnUS LocaleFlags = 1 << 0
	LocaleKoKR LocaleFlags = 1 << 1
	LocaleFrFR LocaleFlags = 1 << 3
	LocaleDeDE LocaleFlags = 1 << 4
	LocaleZhCN LocaleFlags = 1 << 5
	LocaleEsES LocaleFlags = 1 << 6
	LocaleZhTW LocaleFlags = 1 << 7
	LocaleEnGB LocaleFlags = 1 << 8
	LocaleEsMX LocaleFlags = 1 << 9
	LocaleRuRU LocaleFlags = 1 << 10
	LocalePtBR LocaleFlags = 1 << 11
	LocaleItIT LocaleFlags = 1 << 12
	LocalePtPT LocaleFlags = 1 << 13
	LocaleAll  LocaleFlags = 0xFFFFFFFF
)

// Has reports whether at least one bit in mask is set in f.
func (f LocaleFlags) Has(mask LocaleFlags) bool { return f&mask != 0 }

// RootVersion identifies the on-disk layout of a root manifest.
type RootVersion uint8

const (
	RootV1 RootVersion = 1
	RootV2 RootVersion = 2
	RootV3 RootVersion = 3
	RootV4 RootVersion = 4
)

// Valid reports whether v is one of the four defined root versions.
func (v RootVersion) Valid() bool {
	switch v {
	case RootV1, RootV2, RootV3, RootV4:
		return true
	default:
		return false
	}
}

func (v RootVersion) String() string {
	switch v {
	case RootV1:
		return "V1"
	case RootV2:
		return "V2"
	case RootV3:
		return "V3"
	case RootV4:
		return "V4"
	default:
		return "Unknown"
	}
}

// ManifestKind identifies which of the install/download/size manifest
// formats a byte stream holds, derived from its two-byte magic.
type ManifestKind uint8

const (
	ManifestInstall ManifestKind = iota + 1
	ManifestDownload
	ManifestSize
)

func (k ManifestKind) String() string {
	switch k {
	case ManifestInstall:
		return "Install"
	case ManifestDownload:
		return "Download"
	case ManifestSize:
		return "Size"
	default:
		return "Unknown"
	}
}
