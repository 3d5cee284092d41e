package migration

// MaximumSpaceKeyLength bounds the length of a normalized destination space key.
const MaximumSpaceKeyLength = 255

const spaceKeyReplacementRuneConstant = '_'

// NormalizeSpaceKey replaces every character outside [A-Za-z0-9] with an underscore
// and truncates the result to MaximumSpaceKeyLength characters.
func NormalizeSpaceKey(spaceKey string) string {
	normalized := make([]byte, 0, min(len(spaceKey), MaximumSpaceKeyLength))
	for _, character := range spaceKey {
		if len(normalized) == MaximumSpaceKeyLength {
			break
		}
		if isSpaceKeyCharacter(character) {
			normalized = append(normalized, byte(character))
			continue
		}
		normalized = append(normalized, spaceKeyReplacementRuneConstant)
	}
	return string(normalized)
}

func isSpaceKeyCharacter(character rune) bool {
	switch {
	case character >= 'a' && character <= 'z':
		return true
	case character >= 'A' && character <= 'Z':
		return true
	case character >= '0' && character <= '9':
		return true
	default:
		return false
	}
}
