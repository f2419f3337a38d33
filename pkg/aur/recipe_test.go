package aur

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

const recipe = `# Maintainer: Someone <someone@example.org>
pkgname=cower
pkgver=17
pkgrel=2
pkgdesc="A simple AUR agent (with a pretentious name)"
arch=('i686' 'x86_64')
depends=('curl' 'pacman>=5.0' "yajl" 'openssl<2'
         'curl'
         \
         $(printf '%s' "glib2") 'last')
makedepends=('perl')   # docs
checkdepends+=('bats')
optdepends=('bash-completion: tab completion (bash)'
            "zsh: for the zsh completion"
            'bash-completion: duplicate')
provides=("cower=$pkgver")
conflicts=('cower-git')
replaces=('cower-old')

package() {
  make DESTDIR="$pkgdir" install
}
`

func TestExtractRecipeStripVersions(t *testing.T) {
	got := ExtractRecipe(recipe, FieldsAll, true)

	assert.Equal(t, []string{"curl", "pacman", "yajl", "openssl", "$(printf", "%s", "glib2)", "last"}, got[FieldDepends])
	assert.Equal(t, []string{"perl"}, got[FieldMakeDepends])
	assert.Equal(t, []string{"bats"}, got[FieldCheckDepends])
	assert.Equal(t, []string{"cower"}, got[FieldProvides])
	assert.Equal(t, []string{"cower-git"}, got[FieldConflicts])
	assert.Equal(t, []string{"cower-old"}, got[FieldReplaces])
}

func TestExtractRecipeKeepVersions(t *testing.T) {
	got := ExtractRecipe(recipe, FieldDepends|FieldProvides, false)

	assert.Equal(t, "pacman>=5.0", got[FieldDepends][1])
	assert.Equal(t, "openssl<2", got[FieldDepends][3])
	assert.Equal(t, []string{"cower=$pkgver"}, got[FieldProvides])
	assert.NotContains(t, got, FieldMakeDepends)
}

func TestExtractRecipeVersionStripping(t *testing.T) {
	text := `depends=("foo>=1.2")`

	assert.Equal(t, []string{"foo"}, ExtractRecipe(text, FieldDepends, true)[FieldDepends])
	assert.Equal(t, []string{"foo>=1.2"}, ExtractRecipe(text, FieldDepends, false)[FieldDepends])
}

func TestExtractRecipeOptDepends(t *testing.T) {
	for _, strip := range []bool{true, false} {
		got := ExtractRecipe(recipe, FieldOptDepends, strip)
		assert.Equal(t, []string{
			"bash-completion: tab completion (bash)",
			"zsh: for the zsh completion",
		}, got[FieldOptDepends])
	}
}

func TestExtractRecipeNestedParens(t *testing.T) {
	text := "depends=('a' $(echo (b)) 'c')\nmakedepends=('d')\n"

	got := ExtractRecipe(text, FieldDepends|FieldMakeDepends, true)
	assert.Equal(t, []string{"a", "$(echo", "(b))", "c"}, got[FieldDepends])
	assert.Equal(t, []string{"d"}, got[FieldMakeDepends])
}

func TestExtractRecipeMultiline(t *testing.T) {
	text := "depends=(\n  'one'\n  'two' # second\n  'three'\n)\n"

	got := ExtractRecipe(text, FieldDepends, true)
	assert.Equal(t, []string{"one", "two", "three"}, got[FieldDepends])
}

func TestExtractRecipeIgnoresLookalikes(t *testing.T) {
	text := "depends_x86_64=('lib32')\n_depends=('nope')\nmydepends=('no')\ndepends=('yes')\n"

	got := ExtractRecipe(text, FieldDepends, true)
	assert.Equal(t, []string{"yes"}, got[FieldDepends])
}

func TestExtractRecipeUnterminated(t *testing.T) {
	got := ExtractRecipe("depends=('a' 'b'", FieldDepends, true)
	assert.Equal(t, []string{"a", "b"}, got[FieldDepends])
}

func TestExtractRecipeNoMatch(t *testing.T) {
	assert.Empty(t, ExtractRecipe("pkgname=foo\n", FieldsAll, true))
}

func TestApplyRecipe(t *testing.T) {
	p := &Package{Name: "cower", Depends: []string{"stale"}, Conflicts: []string{"keep"}}
	p.ApplyRecipe("depends=('curl' 'yajl')\n", FieldDepends|FieldConflicts, true)

	assert.Equal(t, []string{"curl", "yajl"}, p.Depends)
	assert.Equal(t, []string{"keep"}, p.Conflicts)
}

func TestStripVersion(t *testing.T) {
	tests := map[string]string{
		"foo":       "foo",
		"foo>=1.2":  "foo",
		"foo<2":     "foo",
		"foo=1:2-3": "foo",
		"lib32-x>0": "lib32-x",
	}
	for in, want := range tests {
		assert.Equal(t, want, StripVersion(in), in)
	}
}

func TestFieldString(t *testing.T) {
	assert.Equal(t, "makedepends", FieldMakeDepends.String())
	assert.Equal(t, "unknown", FieldsBuild.String())
}
