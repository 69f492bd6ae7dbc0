package cli

import (
	"github.com/spf13/cobra"

	"github.com/lazypower/strata/internal/decay"
	"github.com/lazypower/strata/internal/engine"
)

var classifyProps string

var classifyCmd = &cobra.Command{
	Use:   "classify RELATION",
	Short: "Show which memory sector an edge would be classified into",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		props, err := parseProps(classifyProps)
		if err != nil {
			return err
		}
		eng := engine.New(nil, nil, nil)
		return printJSON(cmd.OutOrStdout(), eng.ClassifyMemorySector(args[0], props))
	},
}

var decayCmd = &cobra.Command{
	Use:   "decay",
	Short: "Print the active per-sector decay parameters",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		d := decay.Load(cfg.Decay.Path, newLogger(cfg))
		return printJSON(cmd.OutOrStdout(), map[string]any{
			"source":  d.Source(),
			"sectors": d.Sectors(),
		})
	},
}

var nodeCmd = &cobra.Command{
	Use:   "node",
	Short: "Manage graph nodes",
}

var nodeFlags struct {
	props    string
	vectorID string
}

var nodeAddCmd = &cobra.Command{
	Use:   "add LABEL NAME",
	Short: "Create a node or merge properties into an existing one",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		props, err := parseProps(nodeFlags.props)
		if err != nil {
			return err
		}
		eng, closeFn, err := openEngine()
		if err != nil {
			return err
		}
		defer closeFn()

		req := engine.AddNodeRequest{Label: args[0], Name: args[1], Properties: props}
		if nodeFlags.vectorID != "" {
			req.VectorID = &nodeFlags.vectorID
		}
		res, err := eng.AddNode(cmd.Context(), req)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), res)
	},
}

var edgeCmd = &cobra.Command{
	Use:   "edge",
	Short: "Manage graph edges",
}

var edgeFlags struct {
	props  string
	weight float64
	edgeID string
}

var edgeAddCmd = &cobra.Command{
	Use:   "add SOURCE_ID TARGET_ID RELATION",
	Short: "Create an edge or merge into an existing one; the sector is classified automatically",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		props, err := parseProps(edgeFlags.props)
		if err != nil {
			return err
		}
		eng, closeFn, err := openEngine()
		if err != nil {
			return err
		}
		defer closeFn()

		req := engine.AddEdgeRequest{SourceID: args[0], TargetID: args[1], Relation: args[2], Properties: props}
		if cmd.Flags().Changed("weight") {
			req.Weight = &edgeFlags.weight
		}
		res, err := eng.AddEdge(cmd.Context(), req)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), res)
	},
}

var edgeGetCmd = &cobra.Command{
	Use:   "get SOURCE_NAME TARGET_NAME RELATION",
	Short: "Look up a single edge by endpoint names and relation",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, closeFn, err := openEngine()
		if err != nil {
			return err
		}
		defer closeFn()

		edge, err := eng.GetEdge(cmd.Context(), engine.EdgeRef{
			SourceName: args[0], TargetName: args[1], Relation: args[2], EdgeID: edgeFlags.edgeID,
		})
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), edge)
	},
}

var edgeEngageCmd = &cobra.Command{
	Use:   "engage EDGE_ID",
	Short: "Mark an edge as actively used, resetting its decay",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, closeFn, err := openEngine()
		if err != nil {
			return err
		}
		defer closeFn()

		edge, err := eng.EngageEdge(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), edge)
	},
}

var edgeRelevanceCmd = &cobra.Command{
	Use:   "relevance EDGE_ID",
	Short: "Print an edge's current relevance score",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, closeFn, err := openEngine()
		if err != nil {
			return err
		}
		defer closeFn()

		res, err := eng.Relevance(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), res)
	},
}

var neighborFlags struct {
	relation          string
	depth             int
	direction         string
	includeSuperseded bool
	props             string
	sectors           []string
	relevance         bool
}

var neighborsCmd = &cobra.Command{
	Use:   "neighbors NODE_ID",
	Short: "Traverse the graph outward from a node",
	Long: `Traverse the graph outward from a node. Filters apply to every hop.

--sectors limits traversal to the given sectors; --sectors="" matches nothing.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		props, err := parseProps(neighborFlags.props)
		if err != nil {
			return err
		}
		req := engine.NeighborRequest{
			NodeID:            args[0],
			RelationType:      neighborFlags.relation,
			MaxDepth:          neighborFlags.depth,
			Direction:         neighborFlags.direction,
			IncludeSuperseded: neighborFlags.includeSuperseded,
			PropertiesFilter:  props,
			WithRelevance:     neighborFlags.relevance,
		}
		if cmd.Flags().Changed("sectors") {
			req.SectorFilter = append([]string{}, neighborFlags.sectors...)
		}

		eng, closeFn, err := openEngine()
		if err != nil {
			return err
		}
		defer closeFn()

		out, err := eng.QueryNeighbors(cmd.Context(), req)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), out)
	},
}

var pathDepth int

var pathCmd = &cobra.Command{
	Use:   "path START_NAME END_NAME",
	Short: "Find a shortest path between two nodes by name",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, closeFn, err := openEngine()
		if err != nil {
			return err
		}
		defer closeFn()

		p, err := eng.FindPath(cmd.Context(), args[0], args[1], pathDepth)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), p)
	},
}

var reclassifyFlags struct {
	actor  string
	edgeID string
}

var reclassifyCmd = &cobra.Command{
	Use:   "reclassify SOURCE_NAME TARGET_NAME RELATION NEW_SECTOR",
	Short: "Move an edge to a different memory sector",
	Long: `Move an edge to a different memory sector. Constitutive edges need an
approved consent proposal naming the edge and the new sector.`,
	Args: cobra.ExactArgs(4),
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, closeFn, err := openEngine()
		if err != nil {
			return err
		}
		defer closeFn()

		res, err := eng.Reclassify(cmd.Context(), engine.ReclassifyRequest{
			EdgeRef: engine.EdgeRef{
				SourceName: args[0], TargetName: args[1], Relation: args[2], EdgeID: reclassifyFlags.edgeID,
			},
			NewSector: args[3],
			Actor:     reclassifyFlags.actor,
		})
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), res)
	},
}

func init() {
	classifyCmd.Flags().StringVar(&classifyProps, "props", "", "edge properties as a JSON object")

	nodeAddCmd.Flags().StringVar(&nodeFlags.props, "props", "", "node properties as a JSON object")
	nodeAddCmd.Flags().StringVar(&nodeFlags.vectorID, "vector-id", "", "opaque embedding reference")
	nodeCmd.AddCommand(nodeAddCmd)

	edgeAddCmd.Flags().StringVar(&edgeFlags.props, "props", "", "edge properties as a JSON object")
	edgeAddCmd.Flags().Float64Var(&edgeFlags.weight, "weight", 1.0, "edge weight")
	edgeGetCmd.Flags().StringVar(&edgeFlags.edgeID, "edge-id", "", "pick one edge when names are ambiguous")
	edgeCmd.AddCommand(edgeAddCmd, edgeGetCmd, edgeEngageCmd, edgeRelevanceCmd)

	f := neighborsCmd.Flags()
	f.StringVar(&neighborFlags.relation, "relation", "", "only follow edges with this relation")
	f.IntVar(&neighborFlags.depth, "depth", 1, "maximum hops (capped at 5)")
	f.StringVar(&neighborFlags.direction, "direction", "both", "outgoing, incoming, or both")
	f.BoolVar(&neighborFlags.includeSuperseded, "include-superseded", false, "follow superseded edges")
	f.StringVar(&neighborFlags.props, "props", "", "edge property filter as a JSON object")
	f.StringSliceVar(&neighborFlags.sectors, "sectors", nil, "comma-separated sectors to traverse")
	f.BoolVar(&neighborFlags.relevance, "relevance", false, "annotate each edge with its relevance score")

	pathCmd.Flags().IntVar(&pathDepth, "depth", 4, "maximum hops (capped at 10)")

	reclassifyCmd.Flags().StringVar(&reclassifyFlags.actor, "actor", "", "who is making the change (required)")
	reclassifyCmd.Flags().StringVar(&reclassifyFlags.edgeID, "edge-id", "", "pick one edge when names are ambiguous")
}
