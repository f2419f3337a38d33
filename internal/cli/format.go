package cli

import (
	"strconv"
	"strings"

	"github.com/matzehuels/aurgrab/pkg/aur"
)

// formatter renders packages through a user format string.
//
//	%n name          %v version        %d description   %u upstream URL
//	%l license       %m maintainer     %p AUR page      %o votes
//	%w popularity    %b package base   %D depends       %M makedepends
//	%O optdepends    %P provides       %C conflicts     %R replaces
//	%% literal %
//
// \n, \t and \\ are unescaped. Unknown directives are copied through.
type formatter struct {
	format  string
	baseURL string
	delim   string
}

func newFormatter(format, baseURL, delim string) *formatter {
	return &formatter{
		format:  unescape(format),
		baseURL: strings.TrimSuffix(baseURL, "/"),
		delim:   delim,
	}
}

// Format renders one package.
func (f *formatter) Format(p *aur.Package) string {
	var b strings.Builder
	s := f.format
	for {
		i := strings.IndexByte(s, '%')
		if i < 0 || i == len(s)-1 {
			b.WriteString(s)
			return b.String()
		}
		b.WriteString(s[:i])
		b.WriteString(f.directive(s[i+1], p))
		s = s[i+2:]
	}
}

func (f *formatter) directive(c byte, p *aur.Package) string {
	switch c {
	case 'n':
		return p.Name
	case 'v':
		return p.Version
	case 'd':
		return p.Description
	case 'u':
		return p.URL
	case 'l':
		return f.join(p.License)
	case 'm':
		if p.Maintainer == "" {
			return "(orphan)"
		}
		return p.Maintainer
	case 'p':
		return f.baseURL + "/packages/" + p.Name
	case 'o':
		return strconv.Itoa(p.NumVotes)
	case 'w':
		return strconv.FormatFloat(p.Popularity, 'f', 2, 64)
	case 'b':
		return p.Base()
	case 'D':
		return f.join(p.Depends)
	case 'M':
		return f.join(p.MakeDepends)
	case 'O':
		return f.join(p.OptDepends)
	case 'P':
		return f.join(p.Provides)
	case 'C':
		return f.join(p.Conflicts)
	case 'R':
		return f.join(p.Replaces)
	case '%':
		return "%"
	}
	return "%" + string(c)
}

func (f *formatter) join(list []string) string {
	return strings.Join(list, f.delim)
}

var escapes = strings.NewReplacer(`\n`, "\n", `\t`, "\t", `\\`, `\`)

func unescape(s string) string {
	return escapes.Replace(s)
}
