package validate

// Profile selects which issue classes a validation run surfaces.
type Profile string

const (
	ProfileMinimal    Profile = "minimal"
	ProfileRuntime    Profile = "runtime"
	ProfileAIFriendly Profile = "ai-friendly"
	ProfileStrict     Profile = "strict"
)

// Mode scopes how much of each node's schema is validated.
type Mode string

const (
	ModeFull      Mode = "full"
	ModeOperation Mode = "operation"
	ModeMinimal   Mode = "minimal"
)

// minimalKeep are the codes the minimal profile retains.
var minimalKeep = map[string]bool{
	CodeMissingRequiredProperty: true,
	CodeTypeMismatch:            true,
	CodeInvalidOption:           true,
	CodeEnhancedSecurity:        true,
	CodeMissingProperty:         true,
	CodeDuplicateNodeName:       true,
	CodeConnectionDangling:      true,
}

// runtimeBlockingWarnings are warnings kept by the runtime profile because
// they block execution.
var runtimeBlockingWarnings = map[string]bool{
	CodeUnknownNodeType:           true,
	CodeMissingLanguageModel:      true,
	CodeTooManyLanguageModels:     true,
	CodeMultipleMemoryConnections: true,
	CodeMissingOutputParser:       true,
}

// filterByProfile applies the profile's issue selection after collection.
func filterByProfile(issues []Issue, profile Profile) []Issue {
	out := make([]Issue, 0, len(issues))
	for _, iss := range issues {
		if keepIssue(iss, profile) {
			out = append(out, iss)
		}
	}
	return out
}

func keepIssue(iss Issue, profile Profile) bool {
	switch profile {
	case ProfileMinimal:
		if iss.Severity == SeverityError {
			return minimalKeep[iss.Code]
		}
		// ENHANCED_SECURITY is emitted as a warning but stays in the
		// minimal set.
		return iss.Severity == SeverityWarning && iss.Code == CodeEnhancedSecurity
	case ProfileRuntime:
		if iss.Severity == SeverityError {
			return true
		}
		if iss.Severity == SeverityWarning {
			return runtimeBlockingWarnings[iss.Code]
		}
		return false
	case ProfileStrict, ProfileAIFriendly:
		return true
	default:
		return iss.Severity != SeverityInfo
	}
}

// ParseProfile validates a profile name, defaulting to runtime.
func ParseProfile(s string) Profile {
	switch Profile(s) {
	case ProfileMinimal, ProfileRuntime, ProfileAIFriendly, ProfileStrict:
		return Profile(s)
	default:
		return ProfileRuntime
	}
}
