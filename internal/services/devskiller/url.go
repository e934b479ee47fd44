package devskiller

import (
	"fmt"
	"regexp"
)

// invitationPattern matches the candidate/invitation pair embedded in a
// DevSkiller video URL.
var invitationPattern = regexp.MustCompile(`candidates/([^/]+)/detail/invitations/([^/?#]+)`)

// ExtractInvitationIDs pulls the candidate and invitation identifiers out of
// a video URL. The pair is the stable job key for status polling.
func ExtractInvitationIDs(url string) (candidateID, invitationID string, err error) {
	m := invitationPattern.FindStringSubmatch(url)
	if m == nil {
		return "", "", fmt.Errorf("invalid DevSkiller URL format: %s", url)
	}
	return m[1], m[2], nil
}

// VideoJobKey builds the credential-store key for a video job record
func VideoJobKey(candidateID, invitationID string) string {
	return fmt.Sprintf("video:%s:%s", candidateID, invitationID)
}
