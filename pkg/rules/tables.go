package rules

import (
	"strings"

	"github.com/Sumatoshi-tech/prescan/pkg/model"
	"github.com/Sumatoshi-tech/prescan/pkg/units"
)

// Destination platform limits.
const (
	DefaultMaxPathLength  = 400
	DefaultMaxNameLength  = 255
	DefaultWarningPercent = 80

	// DefaultBluebeamPathLength is the encoded length at which PDFs start
	// breaking in Bluebeam Revu, which has a stricter path limit than the
	// destination itself.
	DefaultBluebeamPathLength = 200
)

// File size thresholds. A file is flagged at the highest threshold it exceeds.
const (
	DefaultSizeInfo     = 5 * units.GiB
	DefaultSizeWarning  = 15000 * units.MiB
	DefaultSizeCritical = 250 * units.GiB
)

// InvalidCharacters may not appear anywhere in a file or folder name.
var InvalidCharacters = []rune{'"', '*', ':', '<', '>', '?', '/', '\\', '|'}

// ReservedNames may not be used as a name (files are also compared without extension).
var ReservedNames = []string{
	".lock", "CON", "PRN", "AUX", "NUL",
	"COM0", "COM1", "COM2", "COM3", "COM4", "COM5", "COM6", "COM7", "COM8", "COM9",
	"LPT0", "LPT1", "LPT2", "LPT3", "LPT4", "LPT5", "LPT6", "LPT7", "LPT8", "LPT9",
	"desktop.ini", "_vti_",
}

// BlockedPatterns may not appear anywhere inside a name.
var BlockedPatterns = []string{"_vti_"}

// Blocked name prefixes, split by item type.
var (
	BlockedFilePrefixes   = []string{"~$"}
	BlockedFolderPrefixes = []string{"~"}
)

// RootLevelBlockedNames are reserved only for folders directly under the library root.
var RootLevelBlockedNames = []string{"forms"}

// ExtensionRule flags files by extension.
type ExtensionRule struct {
	Category    string
	Severity    model.Severity
	Extensions  []string
	Description string
	Remediation string

	// MinSize, when positive, only flags files strictly larger than it.
	MinSize int64

	// EscalateAbove, when positive, raises severity to Critical for files
	// strictly larger than it.
	EscalateAbove int64
}

// PatternRule flags files whose lowercased name matches a glob pattern.
type PatternRule struct {
	Category    string
	Severity    model.Severity
	Patterns    []string
	Description string
	Remediation string
}

// BlockedTypes are never accepted for upload. First matching group wins.
var BlockedTypes = []ExtensionRule{
	{
		Category:    "Blocked - Executable",
		Severity:    model.SeverityWarning,
		Extensions:  []string{".exe", ".bat", ".cmd", ".com", ".scr", ".pif", ".msi", ".msp", ".application"},
		Description: "Executable files are often blocked by administrators for security reasons.",
		Remediation: "Remove executable files or confirm with the site administrator that they are allowed.",
	},
	{
		Category: "Blocked - Script",
		Severity: model.SeverityWarning,
		Extensions: []string{
			".vbs", ".vbe", ".js", ".jse", ".wsf", ".wsh", ".ps1", ".psm1", ".psd1", ".ps1xml", ".csh", ".ksh",
		},
		Description: "Script files may be blocked by administrators for security reasons.",
		Remediation: "Check with the site administrator whether script files may be uploaded.",
	},
	{
		Category:    "Blocked - System",
		Severity:    model.SeverityWarning,
		Extensions:  []string{".dll", ".sys", ".drv", ".cpl", ".ocx"},
		Description: "System files are typically blocked in the destination library.",
		Remediation: "Exclude system files from migration.",
	},
	{
		Category: "Blocked - Potentially Dangerous",
		Severity: model.SeverityWarning,
		Extensions: []string{
			".ade", ".adp", ".app", ".asa", ".asp", ".aspx", ".bas", ".cer", ".chm", ".class",
			".cnt", ".crt", ".der", ".fxp", ".gadget", ".grp", ".hlp", ".hpj", ".hta",
			".htc", ".htr", ".htw", ".ida", ".idc", ".idq", ".ins", ".isp", ".its", ".jar",
			".lnk", ".mad", ".maf", ".mag", ".mam", ".maq", ".mar", ".mas",
			".mat", ".mau", ".mav", ".maw", ".mcf", ".mda", ".mdb", ".mde", ".mdt", ".mdw",
			".mdz", ".mht", ".mhtml", ".msc", ".msh", ".msh1", ".msh1xml", ".msh2", ".msh2xml",
			".mshxml", ".mst", ".ops", ".pcd", ".plg", ".prf", ".prg", ".printer",
			".pst", ".reg", ".rem", ".scf", ".sct", ".shb", ".shs", ".shtm", ".shtml",
			".soap", ".stm", ".svc", ".url", ".vb", ".vsix", ".ws", ".wsc", ".xamlx",
		},
		Description: "This file type may be blocked for security reasons.",
		Remediation: "Verify whether the file is needed and allowed by the site policy.",
	},
}

// ProblematicTypes upload but behave badly once there. First matching category wins.
var ProblematicTypes = []ExtensionRule{
	{
		Category: "CAD/BIM",
		Severity: model.SeverityWarning,
		Extensions: []string{
			".dwg", ".dxf", ".dwl", ".dwl2", ".rvt", ".rfa", ".rte", ".rft", ".dgn",
			".sldprt", ".sldasm", ".slddrw", ".ipt", ".iam", ".idw", ".ipn",
			".catpart", ".catproduct", ".catdrawing", ".prt", ".asm", ".drw",
			".step", ".stp", ".iges", ".igs",
		},
		Description: "CAD files lack proper file locking; simultaneous edits can silently overwrite each other.",
		Remediation: "Use a CAD document management system or a file server for collaborative CAD work.",
	},
	{
		Category: "Adobe Creative",
		Severity: model.SeverityWarning,
		Extensions: []string{
			".psd", ".psb", ".ai", ".indd", ".indt", ".idml", ".prproj", ".prel",
			".aep", ".aet", ".fla", ".xfl", ".xd", ".idlk",
		},
		Description: "Creative suite files cannot be opened in the browser and linked assets break on per-user sync paths.",
		Remediation: "Download to a local drive before editing; relink assets after migration.",
	},
	{
		Category: "Database",
		Severity: model.SeverityWarning,
		Extensions: []string{
			".mdb", ".accdb", ".accde", ".accdr", ".laccdb", ".qbw", ".qbb", ".qbm", ".qbx",
			".nsf", ".ntf", ".sqlite", ".sqlite3", ".db", ".db3", ".dbf", ".fpt", ".cdx",
			".mdf", ".ldf", ".ndf", ".fp7", ".fmp12",
		},
		Description: "Database files need exclusive access and corrupt when synced by several users.",
		Remediation: "Migrate to a hosted database or list-based solution.",
	},
	{
		Category:      "Email Archive",
		Severity:      model.SeverityWarning,
		Extensions:    []string{".pst", ".ost"},
		Description:   "Mail archives are locked while the mail client runs and re-upload completely after any change.",
		Remediation:   "Import into the hosted mailbox archive instead of syncing the file.",
		EscalateAbove: units.GiB,
	},
	{
		Category: "Large Media",
		Severity: model.SeverityInfo,
		Extensions: []string{
			".mp4", ".mov", ".avi", ".mkv", ".wmv", ".m4v", ".webm", ".flv",
			".wav", ".aiff", ".aif", ".flac",
			".raw", ".cr2", ".cr3", ".nef", ".arw", ".dng", ".orf", ".rw2",
		},
		Description: "Large media files sync slowly.",
		Remediation: "Consider a video streaming service for large recordings.",
		MinSize:     5 * units.GiB,
	},
	{
		Category: "Virtual Machine",
		Severity: model.SeverityWarning,
		Extensions: []string{
			".vmdk", ".vhd", ".vhdx", ".vdi", ".iso", ".img", ".dmg", ".ova", ".ovf", ".qcow", ".qcow2",
		},
		Description: "Disk images are very large and cannot be used directly from the destination.",
		Remediation: "Store disk images in blob storage.",
	},
	{
		Category: "Backup/Archive",
		Severity: model.SeverityInfo,
		Extensions: []string{
			".bak", ".backup", ".old", ".orig", ".zip", ".7z", ".rar", ".tar", ".gz", ".tgz", ".cab", ".arc",
		},
		Description: "Archives cannot be previewed in the browser.",
		Remediation: "Decide whether the archive needs migrating or can be stored separately.",
		MinSize:     10 * units.GiB,
	},
	{
		Category:    "OneNote",
		Severity:    model.SeverityInfo,
		Extensions:  []string{".one", ".onetoc2"},
		Description: "Notebook section files should be migrated as notebooks, not raw files.",
		Remediation: "Use the notebook import tooling instead of copying section files.",
	},
}

// OtherTypes maps remaining extensions to a short explanation (category "Other", Info).
var OtherTypes = map[string]string{
	".gdoc":    "Google Docs link; a pointer file without content",
	".gsheet":  "Google Sheets link; a pointer file without content",
	".gslides": "Google Slides link; a pointer file without content",
	".numbers": "Apple Numbers; no preview or co-authoring",
	".pages":   "Apple Pages; no preview or co-authoring",
	".key":     "Apple Keynote; no preview or co-authoring",
	".vsdx":    "Visio; limited web viewing, requires a Visio license",
	".mpp":     "Project; no web editing, requires a Project license",
	".pub":     "Publisher; no web editing or preview",
}

// ProblematicPatterns are evaluated after all extension tables.
var ProblematicPatterns = []PatternRule{
	{
		Category: "Security",
		Severity: model.SeverityWarning,
		Patterns: []string{
			".env", ".env.*", "credentials.json", "secrets.json", "secrets.yaml", "secrets.yml",
			"*.pem", "*.pfx", "*.p12", "id_rsa", "id_rsa.*", "id_ed25519", "id_ed25519.*",
			".htpasswd", "wp-config.php", "web.config",
		},
		Description: "This file may contain secrets or credentials.",
		Remediation: "Review before migrating to shared storage.",
	},
	{
		Category:    "Lock File",
		Severity:    model.SeverityInfo,
		Patterns:    []string{"~$*", ".~*", "~*.tmp", "*.ldb"},
		Description: "Lock files block sync while the owning application is open.",
		Remediation: "Close the owning application; lock files are normally skipped by migration tools.",
	},
	{
		Category:    "Temporary",
		Severity:    model.SeverityInfo,
		Patterns:    []string{"*.tmp", "*.temp", "*.swp", "*.swo", "~*"},
		Description: "Temporary files are typically not synced.",
		Remediation: "Delete temporary files before migration.",
	},
	{
		Category:    "No Sync",
		Severity:    model.SeverityInfo,
		Patterns:    []string{"desktop.ini", ".ds_store", "thumbs.db", ".spotlight-*", ".trashes", ".fseventsd"},
		Description: "Operating system metadata files do not sync.",
		Remediation: "Exclude operating system metadata from migration.",
	},
}

// Tables holds the lookup structures built from the fixed rule lists.
type Tables struct {
	invalid      map[rune]struct{}
	reserved     map[string]struct{}
	rootBlocked  map[string]struct{}
	blocked      map[string]int
	problematic  map[string]int
	blockedRules []ExtensionRule
	probRules    []ExtensionRule
	other        map[string]string
	patterns     []PatternRule
}

// DefaultTables builds lookup tables from the package-level rule lists.
func DefaultTables() *Tables {
	t := &Tables{
		invalid:      make(map[rune]struct{}, len(InvalidCharacters)),
		reserved:     make(map[string]struct{}, len(ReservedNames)),
		rootBlocked:  make(map[string]struct{}, len(RootLevelBlockedNames)),
		blocked:      make(map[string]int),
		problematic:  make(map[string]int),
		blockedRules: BlockedTypes,
		probRules:    ProblematicTypes,
		other:        OtherTypes,
		patterns:     ProblematicPatterns,
	}

	for _, r := range InvalidCharacters {
		t.invalid[r] = struct{}{}
	}

	for _, name := range ReservedNames {
		t.reserved[strings.ToUpper(name)] = struct{}{}
	}

	for _, name := range RootLevelBlockedNames {
		t.rootBlocked[strings.ToUpper(name)] = struct{}{}
	}

	indexExtensions(t.blocked, BlockedTypes)
	indexExtensions(t.problematic, ProblematicTypes)

	return t
}

// indexExtensions maps each extension to the first rule that lists it.
func indexExtensions(dst map[string]int, rules []ExtensionRule) {
	for i, rule := range rules {
		for _, ext := range rule.Extensions {
			key := strings.ToLower(ext)
			if _, ok := dst[key]; !ok {
				dst[key] = i
			}
		}
	}
}
