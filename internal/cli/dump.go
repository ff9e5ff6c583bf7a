package cli

import (
	"fmt"

	"github.com/cockroachdb/errors"
	"github.com/samber/lo"
	"github.com/spf13/cobra"

	"github.com/entitycache/graphwire/scene"
	"github.com/entitycache/graphwire/wire/core"
	"github.com/entitycache/graphwire/wire/runtime"
)

func (c *CLI) dumpCommand() *cobra.Command {
	var (
		depthFlag string
		pretty    bool
		many      bool
		object    string
	)

	cmd := &cobra.Command{
		Use:   "dump",
		Short: "Serialize the demo scene and print the response envelope",
		Long: `Serialize the demo scene, or one of its objects, and print the command
response envelope. With --many every game object is serialized in a single
pass, so objects already reached from an earlier root render as references.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			depth, err := c.depth(depthFlag)
			if err != nil {
				return err
			}
			engine := c.engine()
			world := scene.Demo()

			var tree any
			switch {
			case many:
				objs := lo.Map(world.GameObjects(), func(g *scene.GameObject, _ int) any { return g })
				results := engine.SerializeMany(objs, depth)
				tree = lo.Map(results, func(res core.Result, _ int) any {
					return runtime.FromResult(res).Wire()
				})
			case object != "":
				g := world.Find(object)
				if g == nil {
					return errors.Newf("no game object named %q", object)
				}
				tree = runtime.FromResult(engine.Serialize(g, depth)).Wire()
			default:
				tree = runtime.FromResult(engine.Serialize(world, depth)).Wire()
			}

			data, err := core.Encode(tree, pretty)
			if err != nil {
				return errors.Wrap(err, "encode output")
			}
			_, err = fmt.Fprintln(c.out, string(data))
			return err
		},
	}

	cmd.Flags().StringVarP(&depthFlag, "depth", "d", "", "serialization depth: basic, standard or deep")
	cmd.Flags().BoolVarP(&pretty, "pretty", "p", false, "indent the output")
	cmd.Flags().BoolVar(&many, "many", false, "serialize every game object in one pass")
	cmd.Flags().StringVarP(&object, "object", "o", "", "serialize a single game object by name")

	return cmd
}
