package settings

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func roundTrip(t *testing.T, src string) string {
	t.Helper()

	obj := newObject()
	require.NoError(t, json.Unmarshal([]byte(src), obj))

	out, err := json.Marshal(obj)
	require.NoError(t, err)

	return string(out)
}

func TestObject_PreservesMemberOrder(t *testing.T) {
	t.Parallel()

	src := `{"zebra":1,"apple":2,"mango":3}`
	require.Equal(t, src, roundTrip(t, src))
}

func TestObject_PreservesScalarBytes(t *testing.T) {
	t.Parallel()

	// encoding/json would rewrite 1.50 as 1.5 and lose precision on the
	// big integer; the document type must not.
	src := `{"price":1.50,"id":12345678901234567890,"note":"uñicode"}`
	require.Equal(t, src, roundTrip(t, src))
}

func TestObject_NestedContainers(t *testing.T) {
	t.Parallel()

	src := `{"outer":{"b":1,"a":2},"list":[{"y":1,"x":2},null,3.0]}`
	require.Equal(t, src, roundTrip(t, src))
}

func TestObject_DuplicateKeys(t *testing.T) {
	t.Parallel()

	// First occurrence keeps its position, last occurrence wins the value.
	require.Equal(t, `{"a":3,"b":2}`, roundTrip(t, `{"a":1,"b":2,"a":3}`))
}

func TestObject_SetKeepsExistingPosition(t *testing.T) {
	t.Parallel()

	obj := newObject()
	require.NoError(t, json.Unmarshal([]byte(`{"first":1,"second":2}`), obj))

	v, err := NewValue(42)
	require.NoError(t, err)
	obj.Set("first", v)

	w, err := NewValue("new")
	require.NoError(t, err)
	obj.Set("third", w)

	out, err := json.Marshal(obj)
	require.NoError(t, err)
	require.Equal(t, `{"first":42,"second":2,"third":"new"}`, string(out))
}

func TestObject_Delete(t *testing.T) {
	t.Parallel()

	obj := newObject()
	require.NoError(t, json.Unmarshal([]byte(`{"a":1,"b":2,"c":3}`), obj))

	obj.Delete("b")
	obj.Delete("missing")

	require.Equal(t, []string{"a", "c"}, obj.Keys())
	require.Equal(t, 2, obj.Len())

	_, ok := obj.Get("b")
	require.False(t, ok)
}

func TestObject_RejectsNonObject(t *testing.T) {
	t.Parallel()

	for _, src := range []string{`[1,2]`, `"text"`, `42`, `null`} {
		require.Error(t, json.Unmarshal([]byte(src), newObject()), "input %s", src)
	}
}

func TestNewValue_FromGoValues(t *testing.T) {
	t.Parallel()

	v, err := NewValue(map[string]any{"enabled": true})
	require.NoError(t, err)

	obj, ok := v.Object()
	require.True(t, ok)

	member, ok := obj.Get("enabled")
	require.True(t, ok)

	data, err := json.Marshal(member)
	require.NoError(t, err)
	require.Equal(t, "true", string(data))
}
