package domain

// Known usage categories.
const (
	UsageEauPotable       = "Eau potable"
	UsageAgriculture      = "Agriculture"
	UsageIndustrie        = "Industrie"
	UsageCamionCiterne    = "Camion citerne"
	UsageEauEmbouteillee  = "Eau embouteillée"
	UsageHydroelectricite = "Hydroélectricité"
	UsageThermalisme      = "Thermalisme"
	UsageAutre            = "Autre"
	UsageNonRenseigne     = "Non renseigné"
)

// Known types de milieu.
const (
	MilieuSurface    = "Eau de surface"
	MilieuSouterrain = "Eau souterraine"
	MilieuTransition = "Eau de transition"
)

// UsageColors is the chip colouring of a usage. Both fields are empty for an
// unknown usage.
type UsageColors struct {
	Background string `json:"background,omitempty"`
	TextColor  string `json:"textColor,omitempty"`
}

type usageEntry struct {
	usage string
	UsageColors
}

type milieuEntry struct {
	typeMilieu string
	color      string
}

var usagesTable = []usageEntry{
	{UsageEauPotable, UsageColors{Background: "#BDE3FF", TextColor: "#0063CB"}},
	{UsageAgriculture, UsageColors{Background: "#C9FCAC", TextColor: "#18753C"}},
	{UsageIndustrie, UsageColors{Background: "#E3E3FD", TextColor: "#000091"}},
	{UsageCamionCiterne, UsageColors{Background: "#FEECC2", TextColor: "#716043"}},
	{UsageEauEmbouteillee, UsageColors{Background: "#C3FAD5", TextColor: "#297254"}},
	{UsageHydroelectricite, UsageColors{Background: "#FEE7FC", TextColor: "#6E445A"}},
	{UsageThermalisme, UsageColors{Background: "#FEE9E6", TextColor: "#8D533E"}},
	{UsageAutre, UsageColors{Background: "#EEEEEE", TextColor: "#3A3A3A"}},
	{UsageNonRenseigne, UsageColors{Background: "#FFFFFF", TextColor: "#666666"}},
}

var typesMilieuTable = []milieuEntry{
	{MilieuSurface, "#009081"},
	{MilieuSouterrain, "#7B4F2C"},
	{MilieuTransition, "#6A6AF4"},
}

// UsageColor looks up the colours of usage by exact match.
func UsageColor(usage string) UsageColors {
	for _, e := range usagesTable {
		if e.usage == usage {
			return e.UsageColors
		}
	}
	return UsageColors{}
}

// TypeMilieuColor looks up the marker colour of a type de milieu.
func TypeMilieuColor(typeMilieu string) (string, bool) {
	for _, e := range typesMilieuTable {
		if e.typeMilieu == typeMilieu {
			return e.color, true
		}
	}
	return "", false
}

// Usages lists the known usages in display order.
func Usages() []string {
	out := make([]string, len(usagesTable))
	for i, e := range usagesTable {
		out[i] = e.usage
	}
	return out
}

// TypesMilieu lists the known types de milieu in display order.
func TypesMilieu() []string {
	out := make([]string, len(typesMilieuTable))
	for i, e := range typesMilieuTable {
		out[i] = e.typeMilieu
	}
	return out
}
