package dialogue

import (
	"fmt"
	"strings"

	"github.com/deskline/deskline/internal/records"
)

// Reply texts. Bold markers render on WhatsApp-style transports and are
// harmless elsewhere.

func consentPrompt() string {
	return "*Hi!* \nDo you want to proceed? \nReply with *Yes* to continue or *No* to exit."
}

func mobilePrompt() string {
	return "*Great!* \nReply with *Your Mobile Number* to continue or *No* to exit."
}

func birthDatePrompt(dateFormat string) string {
	return fmt.Sprintf("*Finally!* \nReply with *Your Date Of Birth* to continue or *No* to exit or *Restart* to reset the process. \n\n*Note:* (%s)", dateFormat)
}

func farewell() string {
	return "*No worries!* \nContact us when you need the information."
}

func invalidReply() string {
	return "*Please send valid reply!*"
}

func invalidMobile(attemptsLeft int) string {
	return fmt.Sprintf("*Invalid Mobile Number!* \n\n*Note:* Now you have only %d attempt left.", attemptsLeft)
}

func invalidBirthDate(attemptsLeft int) string {
	return fmt.Sprintf("*Invalid Date Of Birth!* \n\n*Note:* Now you have only %d attempt left.", attemptsLeft)
}

func blockedNotice(minutes int) string {
	return fmt.Sprintf("*Sorry!* \nBut you are now blocked for *%d* minutes.", minutes)
}

func unblockedNotice() string {
	return "*Congratulations!* \nYou are now unblocked."
}

func sessionExpired() string {
	return "*Sorry!* \nBut your session has been expired."
}

func dataUnavailable() string {
	return "*Sorry!* \nYour data is not available right now. Please try again later."
}

// candidateList renders record keys as a 1-based numbered list with the
// selection instructions.
func candidateList(header string, keys []string) string {
	var b strings.Builder
	b.WriteString(header)
	b.WriteString(" \n\n")
	for i, key := range keys {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "(%d) %s", i+1, key)
	}
	b.WriteString("\n\nChoose any policy by *Index* or send *Exit* to exit or *Restart* to reset the process.")
	return b.String()
}

// recordDetails renders a record's fields as key: value lines with the
// refetch instructions.
func recordDetails(header string, fields []records.Field) string {
	var b strings.Builder
	b.WriteString(header)
	b.WriteString(" \n\n")
	for i, f := range fields {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "*%s*: %s", f.Name, f.Value)
	}
	b.WriteString("\n\nReply with *Yes* to refetch information or *No* to exit or *Restart* to reset the process.")
	return b.String()
}
