package benchmarks

import (
	"testing"
	"time"

	"github.com/entitycache/graphwire/scene"
	"github.com/entitycache/graphwire/wire"
	"github.com/entitycache/graphwire/wire/core"
)

type benchAddress struct {
	Street string
	City   string
	Zip    string
}

type benchUser struct {
	ID        string
	Name      string
	Email     string
	CreatedAt time.Time
	Tags      []string
	Addresses []benchAddress
	Manager   *benchUser
}

func newBenchUser() *benchUser {
	u := &benchUser{
		ID:        "user-123",
		Name:      "Benchmark",
		Email:     "benchmark@example.com",
		CreatedAt: time.Now().UTC(),
		Tags:      []string{"alpha", "beta", "gamma"},
		Addresses: []benchAddress{{Street: "1 Main", City: "Benchville", Zip: "12345"}, {Street: "2 Side", City: "Benchville", Zip: "67890"}},
	}
	u.Manager = u
	return u
}

func BenchmarkReflectiveSerialize(b *testing.B) {
	engine := core.NewEngine()
	user := newBenchUser()

	for _, depth := range []core.Depth{core.DepthBasic, core.DepthStandard, core.DepthDeep} {
		b.Run(depth.String(), func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				if res := engine.Serialize(user, depth); res.Status != core.StatusFallback {
					b.Fatalf("unexpected status %s", res.Status)
				}
			}
		})
	}
}

func BenchmarkSceneSerialize(b *testing.B) {
	engine := wire.NewEngine()
	world := scene.Demo()

	for _, depth := range []core.Depth{core.DepthStandard, core.DepthDeep} {
		b.Run(depth.String(), func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				if res := engine.Serialize(world, depth); res.Status != core.StatusHandler {
					b.Fatalf("unexpected status %s", res.Status)
				}
			}
		})
	}
}

func BenchmarkToWireValue(b *testing.B) {
	engine := wire.NewEngine()
	world := scene.Demo()

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := engine.ToWireValue(world, core.DepthDeep, false); err != nil {
			b.Fatalf("encode error: %v", err)
		}
	}
}
