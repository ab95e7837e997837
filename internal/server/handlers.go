package server

import (
	"encoding/json"
	"strconv"

	"github.com/gofiber/fiber/v3"

	"github.com/roach88/textflow/internal/graph"
	"github.com/roach88/textflow/internal/journal"
	"github.com/roach88/textflow/internal/operator"
	"github.com/roach88/textflow/internal/value"
)

type addNodeRequest struct {
	Kind   operator.Kind   `json:"kind"`
	Config json.RawMessage `json:"config"`
}

type addNodeResponse struct {
	ID   graph.NodeID `json:"id"`
	Node nodeJSON     `json:"node"`
}

type removeNodesRequest struct {
	IDs []graph.NodeID `json:"ids"`
}

type passDetail struct {
	Pass        journal.PassRecord         `json:"pass"`
	Evaluations []journal.EvaluationRecord `json:"evaluations"`
}

// bindJSON decodes the request body into out.
func bindJSON(c fiber.Ctx, out any) error {
	if err := c.Bind().JSON(out); err != nil {
		return badRequest("invalid body: %v", err)
	}
	return nil
}

// decodeObject parses a JSON object body. Empty input and null give nil.
func decodeObject(raw []byte) (value.Object, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	v, err := value.Decode(raw)
	if err != nil {
		return nil, badRequest("invalid JSON: %v", err)
	}
	obj, ok := v.(value.Object)
	if !ok {
		return nil, badRequest("config must be a JSON object")
	}
	return obj, nil
}

func (s *Server) listOperators(c fiber.Ctx) error {
	defs := s.engine.Registry().Definitions()
	out := make([]operatorJSON, len(defs))
	for i, def := range defs {
		op, err := encodeOperator(def)
		if err != nil {
			return err
		}
		out[i] = op
	}
	return c.JSON(out)
}

func (s *Server) getGraph(c fiber.Ctx) error {
	g, err := encodeGraph(s.engine.View())
	if err != nil {
		return err
	}
	return c.JSON(g)
}

func (s *Server) listNodes(c fiber.Ctx) error {
	nodes, err := encodeNodes(s.engine.View().Nodes)
	if err != nil {
		return err
	}
	return c.JSON(nodes)
}

func (s *Server) getNode(c fiber.Ctx) error {
	id := graph.NodeID(c.Params("id"))
	nv, ok := s.engine.NodeView(id)
	if !ok {
		return notFound(string(graph.ErrCodeNodeNotFound), "node %q not found", id)
	}
	n, err := encodeNode(nv)
	if err != nil {
		return err
	}
	return c.JSON(n)
}

func (s *Server) addNode(c fiber.Ctx) error {
	var req addNodeRequest
	if err := bindJSON(c, &req); err != nil {
		return err
	}
	if req.Kind == "" {
		return badRequest("kind is required")
	}
	cfg, err := decodeObject(req.Config)
	if err != nil {
		return err
	}

	id, err := s.engine.AddNode(c.Context(), req.Kind, cfg)
	if err != nil {
		return err
	}
	nv, _ := s.engine.NodeView(id)
	n, err := encodeNode(nv)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(addNodeResponse{ID: id, Node: n})
}

func (s *Server) removeNode(c fiber.Ctx) error {
	if err := s.engine.RemoveNode(c.Context(), graph.NodeID(c.Params("id"))); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (s *Server) removeNodes(c fiber.Ctx) error {
	var req removeNodesRequest
	if err := bindJSON(c, &req); err != nil {
		return err
	}
	if len(req.IDs) == 0 {
		return badRequest("ids must name at least one node")
	}
	if err := s.engine.RemoveNodes(c.Context(), req.IDs); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (s *Server) patchConfig(c fiber.Ctx) error {
	id := graph.NodeID(c.Params("id"))
	partial, err := decodeObject(c.Body())
	if err != nil {
		return err
	}
	if partial == nil {
		return badRequest("body must be a JSON object")
	}
	if err := s.engine.PatchConfig(c.Context(), id, partial); err != nil {
		return err
	}
	nv, _ := s.engine.NodeView(id)
	n, err := encodeNode(nv)
	if err != nil {
		return err
	}
	return c.JSON(n)
}

func (s *Server) addEdge(c fiber.Ctx) error {
	var edge graph.Edge
	if err := bindJSON(c, &edge); err != nil {
		return err
	}
	if err := s.engine.AddEdge(c.Context(), edge); err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(edge)
}

func (s *Server) removeEdge(c fiber.Ctx) error {
	var edge graph.Edge
	if err := bindJSON(c, &edge); err != nil {
		return err
	}
	if err := s.engine.RemoveEdge(c.Context(), edge); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (s *Server) recompute(c fiber.Ctx) error {
	summary, err := s.engine.Recompute(c.Context())
	if err != nil {
		return err
	}
	return c.JSON(encodePass(summary))
}

func (s *Server) listPasses(c fiber.Ctx) error {
	if s.journal == nil {
		return errNoJournal
	}
	passes, err := s.journal.ReadPasses(c.Context())
	if err != nil {
		return err
	}
	if passes == nil {
		passes = []journal.PassRecord{}
	}
	return c.JSON(passes)
}

func (s *Server) getPass(c fiber.Ctx) error {
	if s.journal == nil {
		return errNoJournal
	}
	seq, err := strconv.ParseInt(c.Params("seq"), 10, 64)
	if err != nil {
		return badRequest("seq must be an integer: %q", c.Params("seq"))
	}

	passes, err := s.journal.ReadPasses(c.Context())
	if err != nil {
		return err
	}
	for _, p := range passes {
		if p.Seq != seq {
			continue
		}
		evals, err := s.journal.ReadEvaluations(c.Context(), seq)
		if err != nil {
			return err
		}
		if evals == nil {
			evals = []journal.EvaluationRecord{}
		}
		return c.JSON(passDetail{Pass: p, Evaluations: evals})
	}
	return notFound("PASS_NOT_FOUND", "pass %d not found", seq)
}

func (s *Server) nodeHistory(c fiber.Ctx) error {
	if s.journal == nil {
		return errNoJournal
	}
	history, err := s.journal.NodeHistory(c.Context(), c.Params("id"))
	if err != nil {
		return err
	}
	if history == nil {
		history = []journal.EvaluationRecord{}
	}
	return c.JSON(history)
}
