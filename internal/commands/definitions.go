package commands

// StandardDefaults are the built-in preset durations. Each may be
// overridden per name through the standard-override table.
var StandardDefaults = map[string]string{
	"cows":   "8h45m",
	"lnorth": "3d4h50m",
	"lsouth": "1d12h",
	"rice":   "4h",
	"pigs":   "6h",
}

// InstancedBases are the families started with a caller-supplied duration;
// each start allocates the next free numbered key.
var InstancedBases = []string{"seedbed", "kq"}

// IsStandard reports whether name is a built-in preset.
func IsStandard(name string) bool {
	_, ok := StandardDefaults[name]
	return ok
}

// IsInstanced reports whether base is an instanced family.
func IsInstanced(base string) bool {
	for _, b := range InstancedBases {
		if b == base {
			return true
		}
	}
	return false
}

// Definitions is the command-definition table as presented to operators.
type Definitions struct {
	Standard  map[string]string // effective durations, overrides applied
	Custom    map[string]string
	Instanced []string
}
