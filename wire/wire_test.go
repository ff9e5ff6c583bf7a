package wire

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/entitycache/graphwire/scene"
	"github.com/entitycache/graphwire/wire/core"
)

type badge struct {
	Label string
}

func TestDefaultEngineInstallsBuiltins(t *testing.T) {
	res := Serialize(scene.Demo().Find("Sun"), Standard)
	require.Equal(t, core.StatusHandler, res.Status)
	assert.Equal(t, "scene.GameObject", res.TypeName)
}

func TestRegisterAndUnregisterHandler(t *testing.T) {
	prev := Default()
	SetDefault(NewEngine())
	t.Cleanup(func() { SetDefault(prev) })

	require.NoError(t, RegisterHandler(core.HandlerFor(func(_ core.Walker, b *badge, _ core.Depth) (*core.Object, error) {
		return core.NewObject(1).Set("label", b.Label), nil
	})))

	res := Serialize(&badge{Label: "gold"}, Basic)
	require.Equal(t, core.StatusHandler, res.Status)

	assert.True(t, UnregisterHandler(reflect.TypeFor[*badge]()))
	res = Serialize(&badge{Label: "gold"}, Standard)
	assert.Equal(t, core.StatusFallback, res.Status)
}

func TestFacadeHelpers(t *testing.T) {
	assert.True(t, IsDirectlyRepresentable(3.5))
	assert.False(t, IsDirectlyRepresentable(&badge{}))

	out, err := ToWireValue(&badge{Label: "x"}, Standard, false)
	require.NoError(t, err)
	assert.Equal(t, `{"type":"wire.badge","Label":"x"}`, out)

	results := SerializeMany([]any{1, "a"}, Deep)
	require.Len(t, results, 2)
	assert.Equal(t, core.StatusDirect, results[1].Status)
}
