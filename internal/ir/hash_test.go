package ir

import (
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChangeIDDeterminism(t *testing.T) {
	encoded := IRObject{
		"path":  IRArray{IRString("bar"), IRString("baz")},
		"op":    IRString("replace"),
		"value": IRInt(43),
	}

	id1, err := ChangeID("doc", 1, encoded)
	require.NoError(t, err)
	id2, err := ChangeID("doc", 1, Clone(encoded))
	require.NoError(t, err)

	assert.Equal(t, id1, id2)
	assert.Len(t, id1, 64)
	_, err = hex.DecodeString(id1)
	assert.NoError(t, err)
}

func TestChangeIDChangesWithPosition(t *testing.T) {
	encoded := IRObject{"op": IRString("append"), "value": IRString("!")}

	a, err := ChangeID("doc", 1, encoded)
	require.NoError(t, err)
	b, err := ChangeID("doc", 2, encoded)
	require.NoError(t, err)
	c, err := ChangeID("other", 1, encoded)
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
	assert.NotEqual(t, a, c)
}

func TestValueHashKeyOrderIndependent(t *testing.T) {
	a := IRObject{"x": IRInt(1), "y": IRInt(2)}
	b := IRObject{}
	b["y"] = IRInt(2)
	b["x"] = IRInt(1)
	assert.Equal(t, MustValueHash(a), MustValueHash(b))
}

func TestDomainSeparationPreventsCrossTypeCollision(t *testing.T) {
	data := []byte(`{"a":1}`)
	assert.NotEqual(t, hashWithDomain(DomainChange, data), hashWithDomain(DomainValue, data))
}

func TestHashWithDomainNullSeparator(t *testing.T) {
	// "ab" + 0x00 + "c" must differ from "a" + 0x00 + "bc"
	assert.NotEqual(t, hashWithDomain("ab", []byte("c")), hashWithDomain("a", []byte("bc")))
}

func TestValueHashRejectsNonFinite(t *testing.T) {
	_, err := ValueHash(IRFloat(posInf()))
	assert.Error(t, err)
	assert.Panics(t, func() { MustValueHash(IRFloat(posInf())) })
}

func posInf() float64 {
	var zero float64
	return 1 / zero
}
