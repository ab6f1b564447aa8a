// Package ui holds presentation helpers shared by the console front ends.
package ui

// Badge variants understood by the console stylesheet.
const (
	VariantSuccess = "success"
	VariantDanger  = "danger"
	VariantWarning = "warning"
	VariantInfo    = "info"
)

// BadgeVariant maps a decision action to a badge colour. Anything
// unrecognised, including "score", renders as info.
func BadgeVariant(action string) string {
	switch action {
	case "allow":
		return VariantSuccess
	case "block":
		return VariantDanger
	case "review":
		return VariantWarning
	}
	return VariantInfo
}
