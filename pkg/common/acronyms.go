package common

import "strings"

// AcronymMap holds domain acronyms that appear throughout technical
// documentation. Queries and citation candidates are expanded with these so
// that "IMU" and "Inertial Measurement Unit" hit the same material.
var AcronymMap = map[string]string{
	"UAV":    "Unmanned Aerial Vehicle",
	"IMU":    "Inertial Measurement Unit",
	"GPS":    "Global Positioning System",
	"INS":    "Inertial Navigation System",
	"GNSS":   "Global Navigation Satellite System",
	"RADAR":  "Radio Detection and Ranging",
	"LIDAR":  "Light Detection and Ranging",
	"EO":     "Electro-Optical",
	"IR":     "Infrared",
	"RF":     "Radio Frequency",
	"C2":     "Command and Control",
	"ISR":    "Intelligence, Surveillance and Reconnaissance",
	"SATCOM": "Satellite Communications",
	"MTBF":   "Mean Time Between Failures",
	"SWaP":   "Size, Weight and Power",
}

// ExpandAcronyms rewrites known acronyms in text to "ACR (Expansion)" form.
// Only whole words are replaced; already expanded occurrences are left
// alone.
func ExpandAcronyms(text string) string {
	words := strings.Fields(text)
	changed := false
	for i, w := range words {
		trimmed := strings.Trim(w, ".,;:!?()[]\"'")
		expansion, ok := AcronymMap[trimmed]
		if !ok {
			continue
		}
		// skip if the next words already spell out the expansion
		if followedByExpansion(words[i+1:], expansion) {
			continue
		}
		words[i] = strings.Replace(w, trimmed, trimmed+" ("+expansion+")", 1)
		changed = true
	}
	if !changed {
		return text
	}
	return strings.Join(words, " ")
}

func followedByExpansion(rest []string, expansion string) bool {
	if len(rest) == 0 {
		return false
	}
	return strings.HasPrefix(strings.Trim(rest[0], "(.,"), strings.Fields(expansion)[0])
}
