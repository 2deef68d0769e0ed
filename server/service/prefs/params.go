package prefs

import (
	"fmt"
	"strings"
)

// AppletParams renders a decoded preference set as the <PARAM> fragment the
// client applet page inlines between its <APPLET> tags. For every group it
// emits a "<type>.prefsCount" parameter followed by one "<type>.<i>" parameter
// per line, with the line re-encoded in its wire form. Values are emitted
// verbatim, matching the legacy page generator.
func AppletParams(set Set) string {
	var sb strings.Builder
	for _, group := range set {
		fmt.Fprintf(&sb, "<PARAM NAME=\"%s.prefsCount\" VALUE=\"%d\">\n\t", group.Type, len(group.Lines))
		for i, line := range group.Lines {
			fmt.Fprintf(&sb, "<PARAM NAME=\"%s.%d\" VALUE=\"%s=%s;%s\">\n\t",
				group.Type, i, line.Name, line.Tag, line.Value)
		}
	}
	return sb.String()
}
