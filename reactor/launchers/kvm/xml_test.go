package kvm

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractMACFromXML(t *testing.T) {
	cases := []struct {
		name string
		xml  string
		want string
	}{
		{
			name: "single quotes",
			xml:  `<interface><mac address='52:54:00:12:34:56'/></interface>`,
			want: "52:54:00:12:34:56",
		},
		{
			name: "double quotes",
			xml:  `<interface><mac address="52:54:00:aa:bb:cc"/></interface>`,
			want: "52:54:00:aa:bb:cc",
		},
		{
			name: "first of several interfaces",
			xml: `<devices>
  <interface><mac address="52:54:00:00:00:01"/></interface>
  <interface><mac address="52:54:00:00:00:02"/></interface>
</devices>`,
			want: "52:54:00:00:00:01",
		},
		{"no mac present", `<domain></domain>`, ""},
		{"empty input", "", ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, extractMACFromXML(tc.xml))
		})
	}
}

func TestGenerateDomainXMLAppliesDefaults(t *testing.T) {
	xml := generateDomainXML(domainXMLConfig{
		Name:         "minimal",
		OverlayPath:  "/overlays/minimal.qcow2",
		CloudInitISO: "/isos/minimal.iso",
	})

	assert.Contains(t, xml, "<name>minimal</name>")
	assert.Contains(t, xml, `<memory unit="KiB">2097152</memory>`)
	assert.Contains(t, xml, `<vcpu placement="static">2</vcpu>`)
	assert.Contains(t, xml, `<source network="default"/>`)
	assert.Contains(t, xml, "/overlays/minimal.qcow2")
	assert.Contains(t, xml, "/isos/minimal.iso")
}

func TestGenerateDomainXMLHonorsResourceOverrides(t *testing.T) {
	xml := generateDomainXML(domainXMLConfig{
		Name:         "custom",
		MemoryKiB:    8388608,
		VCPUs:        8,
		OverlayPath:  "/overlays/custom.qcow2",
		CloudInitISO: "/isos/custom.iso",
		NetworkName:  "br0",
	})

	assert.Contains(t, xml, `<memory unit="KiB">8388608</memory>`)
	assert.Contains(t, xml, `<vcpu placement="static">8</vcpu>`)
	assert.Contains(t, xml, `<source network="br0"/>`)
}

func TestGenerateDomainXMLIsBalanced(t *testing.T) {
	xml := generateDomainXML(domainXMLConfig{Name: "balanced", OverlayPath: "/o", CloudInitISO: "/i"})
	assert.True(t, strings.HasPrefix(strings.TrimSpace(xml), "<?xml"))
	assert.True(t, strings.HasSuffix(strings.TrimSpace(xml), "</domain>"))
	assert.Equal(t, strings.Count(xml, "<"), strings.Count(xml, ">"))
}
