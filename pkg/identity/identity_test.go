package identity

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSlugify(t *testing.T) {
	tests := map[string]string{
		"Digital Nameplate":                "digital-nameplate",
		"Generic Frame for Technical Data": "generic-frame-for-technical-data",
		"digital-nameplate":                "digital-nameplate",
		"DigitalNameplate":                 "digitalnameplate",
		"  Contact Information (v1) ":      "contact-information-v1",
		"Schnittstelle für Geräte":         "schnittstelle-fur-gerate",
		"Carbon_Footprint -- PCF":          "carbon-footprint-pcf",
		"Straße":                           "strasse",
		"---":                              "",
		"Цифровая табличка":                "цифровая-табличка",
		"Nameplate 数字":                     "nameplate-数字",
	}
	for in, want := range tests {
		assert.Equal(t, want, Slugify(in), in)
	}
}

func TestSlugify_Stable(t *testing.T) {
	assert.Equal(t, Slugify("Digital Nameplate"), Slugify("DIGITAL   nameplate!"))
}

func TestSlugsMatch(t *testing.T) {
	assert.True(t, SlugsMatch("digital-nameplate", "digital-nameplate"))
	assert.True(t, SlugsMatch("nameplate", "digital-nameplate"))
	assert.True(t, SlugsMatch("digital-nameplate-v2", "digital-nameplate"))
	assert.True(t, SlugsMatch("digital-nameplate", "digitalnameplate"))
	assert.False(t, SlugsMatch("digital-nameplate", "carbon-footprint"))
	assert.False(t, SlugsMatch("", "digital-nameplate"))
	assert.False(t, SlugsMatch("digital-nameplate", ""))
	assert.False(t, SlugsMatch("", ""))
}

func TestNormalizeRepoURL(t *testing.T) {
	base := "https://github.com/admin-shell-io/submodel-templates"
	assert.Equal(t, base, NormalizeRepoURL(base+"/"))
	assert.Equal(t, base, NormalizeRepoURL(base+"/tree/main"))
	assert.Equal(t, base, NormalizeRepoURL(base+"/tree/master/"))
	assert.Equal(t, base+"/tree/main/published/X", NormalizeRepoURL(base+"/tree/main/published/X/"))
}

func TestExtractRegistryNumber(t *testing.T) {
	n, ok := ExtractRegistryNumber("IDTA 02006 Digital Nameplate")
	assert.True(t, ok)
	assert.Equal(t, "02006", n)

	n, ok = ExtractRegistryNumber("SMT 02006-3-0")
	assert.True(t, ok)
	assert.Equal(t, "02006", n)

	_, ok = ExtractRegistryNumber("Some text without number")
	assert.False(t, ok)
	_, ok = ExtractRegistryNumber("Number 1234")
	assert.False(t, ok)
	_, ok = ExtractRegistryNumber("Number 123456")
	assert.False(t, ok)
}

func TestTemplateRoot(t *testing.T) {
	assert.Equal(t, "published/Digital Nameplate", TemplateRoot("published/Digital Nameplate/3/0/1"))
	assert.Equal(t, "published/Example", TemplateRoot("published/Example/2/1/"))
	assert.Equal(t, "deprecated/Old", TemplateRoot("deprecated/Old"))
}

func TestEscapePath(t *testing.T) {
	assert.Equal(t, "published/Digital%20Nameplate/3/0", EscapePath("published/Digital Nameplate/3/0"))
}
