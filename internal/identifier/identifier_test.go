package identifier

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseVersionTreeID_RoundTrip(t *testing.T) {
	cases := []string{"1", "2", "10", "425", "1.1.1", "2.1.4", "10.20.30"}
	for _, c := range cases {
		t.Run(c, func(t *testing.T) {
			id, err := ParseVersionTreeID(c)
			require.NoError(t, err)
			assert.Equal(t, c, id.String())

			again, err := ParseVersionTreeID(id.String())
			require.NoError(t, err)
			assert.True(t, id.Equal(again))
		})
	}
}

func TestParseVersionTreeID_Invalid(t *testing.T) {
	cases := []string{"", "0", "01", "1.2", "1.2.0", "1.0.2", "1.2.3.4", "a", "1.a.2", "-1", "1..2", " 1"}
	for _, c := range cases {
		t.Run(c, func(t *testing.T) {
			_, err := ParseVersionTreeID(c)
			require.Error(t, err)
			var ife *InvalidFormatError
			assert.ErrorAs(t, err, &ife)
		})
	}
}

func TestVersionTreeID_Branching(t *testing.T) {
	trunk, err := ParseVersionTreeID("3")
	require.NoError(t, err)
	assert.False(t, trunk.IsBranch())
	assert.Equal(t, 3, trunk.TrunkVersion())
	assert.Equal(t, "4", trunk.NextTrunk().String())

	branch, err := ParseVersionTreeID("3.2.7")
	require.NoError(t, err)
	assert.True(t, branch.IsBranch())
	assert.Equal(t, 3, branch.TrunkVersion())
	assert.Equal(t, 2, branch.BranchNumber())
	assert.Equal(t, 7, branch.BranchVersion())
	// Trunk succession never carries branch components.
	assert.Equal(t, "4", branch.NextTrunk().String())
}

func TestParseUID_Kinds(t *testing.T) {
	cases := []struct {
		value string
		kind  UIDKind
	}{
		{"87284370-2d4b-4e26-a8d6-9aed9d2d80e8", KindUUID},
		{"1.2.840.113619", KindISOOID},
		{"0", KindISOOID},
		{"2.16.840.1.113883", KindISOOID},
		{"org.clinrec.ehr", KindInternetID},
		{"uk.nhs.server1", KindInternetID},
	}
	for _, c := range cases {
		t.Run(c.value, func(t *testing.T) {
			uid, err := ParseUID(c.value)
			require.NoError(t, err)
			assert.Equal(t, c.kind, uid.Kind())
			assert.Equal(t, c.value, uid.Value())
		})
	}
}

func TestParseUID_Invalid(t *testing.T) {
	for _, c := range []string{"", "not a uid!", "87284370-2d4b-4e26", "3.1.4", "singlelabel"} {
		t.Run(c, func(t *testing.T) {
			_, err := ParseUID(c)
			require.Error(t, err)
		})
	}
}

func TestParseRootID_RejectsExtensions(t *testing.T) {
	_, err := ParseRootID("87284370-2d4b-4e26-a8d6-9aed9d2d80e8::org.clinrec.ehr::1")
	require.Error(t, err)

	root, err := ParseRootID("87284370-2d4b-4e26-a8d6-9aed9d2d80e8")
	require.NoError(t, err)
	assert.Equal(t, KindUUID, root.Kind())
}

func TestParseVersionID(t *testing.T) {
	const s = "87284370-2d4b-4e26-a8d6-9aed9d2d80e8::org.clinrec.ehr::2.1.4"
	id, err := ParseVersionID(s)
	require.NoError(t, err)
	assert.Equal(t, "87284370-2d4b-4e26-a8d6-9aed9d2d80e8", id.ObjectID().Value())
	assert.Equal(t, "org.clinrec.ehr", id.CreatingSystemID().Value())
	assert.Equal(t, "2.1.4", id.TreeID().String())
	assert.True(t, id.IsBranch())
	assert.Equal(t, s, id.String())
}

func TestParseVersionID_Invalid(t *testing.T) {
	cases := []string{
		"",
		"87284370-2d4b-4e26-a8d6-9aed9d2d80e8",                        // bare root id
		"87284370-2d4b-4e26-a8d6-9aed9d2d80e8::org.clinrec.ehr",       // missing tree id
		"87284370-2d4b-4e26-a8d6-9aed9d2d80e8::org.clinrec.ehr::1.2",  // bad tree id
		"87284370-2d4b-4e26-a8d6-9aed9d2d80e8::::1",                   // empty system id
		"a::b::c::d",                                                  // too many segments
		"not-a-uid::org.clinrec.ehr::1",                               // bad object id
	}
	for _, c := range cases {
		t.Run(c, func(t *testing.T) {
			_, err := ParseVersionID(c)
			require.Error(t, err)
		})
	}
}

func TestVersionID_ProvenanceDistinguishesVersions(t *testing.T) {
	a, err := ParseVersionID("87284370-2d4b-4e26-a8d6-9aed9d2d80e8::org.clinrec.alpha::1")
	require.NoError(t, err)
	b, err := ParseVersionID("87284370-2d4b-4e26-a8d6-9aed9d2d80e8::org.clinrec.beta::1")
	require.NoError(t, err)
	assert.False(t, a.Equal(b))
}
