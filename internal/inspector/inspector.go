package inspector

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/loafbrew/dapheadless/internal/dapclient"
	"github.com/loafbrew/dapheadless/internal/model"
)

// VariableSource is the subset of dapclient.Client the inspector needs.
// Defined here (rather than depended on concretely) so tests can supply a
// recording fake.
type VariableSource interface {
	Scopes(ctx context.Context, frameID int) ([]dapclient.Scope, error)
	Variables(ctx context.Context, variablesReference, count int) ([]dapclient.Variable, error)
	Evaluate(ctx context.Context, expression string, frameID int, evalContext string) (dapclient.EvaluateResult, error)
}

// Inspector expands a stopped frame's scopes/variables per Config.
type Inspector struct {
	cfg Config
	src VariableSource
	log *logrus.Entry
}

// New builds an Inspector bound to one variable source.
func New(cfg Config, src VariableSource) *Inspector {
	return &Inspector{cfg: cfg, src: src, log: logrus.WithField("component", "inspector")}
}

// snapshot carries the per-stop state that must never leak across stops:
// the visited reference-handle set (cycle detection) and the
// content-hash map (dedup), per spec §5 "Shared resources".
type snapshot struct {
	visited map[int]bool
	hashes  map[string]string
}

func newSnapshot() *snapshot {
	return &snapshot{visited: make(map[int]bool), hashes: make(map[string]string)}
}

// GetLocals fetches the frame's scopes, keeps only scopes whose name
// matches the local-scope pattern, fetches each scope's variables (capped
// at MaxCollectionItems), and expands each one using a fresh snapshot.
func (ins *Inspector) GetLocals(ctx context.Context, frameID int) (map[string]*model.VariableValue, error) {
	scopes, err := ins.src.Scopes(ctx, frameID)
	if err != nil {
		return nil, err
	}

	snap := newSnapshot()
	result := make(map[string]*model.VariableValue)

	for _, scope := range scopes {
		if !isLocalScopeName(scope.Name, ins.cfg.LocalScopeNamePattern) {
			continue
		}
		vars, err := ins.src.Variables(ctx, scope.VariablesReference, ins.cfg.MaxCollectionItems)
		if err != nil {
			ins.log.WithError(err).Warnf("inspector: failed to fetch variables for scope %q", scope.Name)
			continue
		}
		for _, v := range vars {
			result[v.Name] = ins.expand(ctx, v, 0, snap, v.Name)
		}
	}
	return result, nil
}

// expand renders one variable, recursing into members/items while depth
// remains, applying the denylist/service/cycle/dedup rules in the order
// the spec lays out.
func (ins *Inspector) expand(ctx context.Context, v dapclient.Variable, depth int, snap *snapshot, path string) *model.VariableValue {
	primitive := parsePrimitive(v.Value, v.Type)

	val := &model.VariableValue{
		Type:      v.Type,
		Kind:      model.KindPrimitive,
		Primitive: primitive,
	}

	if v.VariablesReference == 0 || depth >= ins.cfg.MaxDepth {
		return val
	}
	val.ReferenceHandle = v.VariablesReference

	if matchesAnyPattern(v.Type, ins.cfg.DeniedTypePatterns) ||
		(ins.cfg.CompactServices && isServiceType(v.Type)) {
		val.Kind = model.KindPrimitive
		val.Primitive = fmt.Sprintf("{%s}", v.Type)
		return val
	}

	if snap.visited[v.VariablesReference] {
		val.Cyclic = true
		return val
	}
	snap.visited[v.VariablesReference] = true

	children, err := ins.src.Variables(ctx, v.VariablesReference, ins.cfg.MaxCollectionItems)
	if err != nil {
		ins.log.WithError(err).Warnf("inspector: failed to expand %q", path)
		val.Kind = model.KindPrimitive
		return val
	}

	filtered := make([]dapclient.Variable, 0, len(children))
	for _, c := range children {
		if isDenied(c.Name, ins.cfg.DeniedPropertyNames) {
			continue
		}
		filtered = append(filtered, c)
	}

	if looksLikeCollection(v.Type) {
		count := collectionCount(v.IndexedVariables, v.NamedVariables, v.Value, len(filtered))
		items := make([]*model.VariableValue, 0, len(filtered))
		elementType := ""
		for i, c := range filtered {
			childPath := fmt.Sprintf("%s[%d]", path, i)
			items = append(items, ins.expand(ctx, c, depth+1, snap, childPath))
			if elementType == "" {
				elementType = c.Type
			}
		}
		val.Kind = model.KindCollection
		val.Collection = &model.Collection{ElementType: elementType, Count: count, Items: items}
		return val
	}

	members := make(map[string]*model.VariableValue, len(filtered))
	for _, c := range filtered {
		childPath := path + "." + c.Name
		childVal := ins.expand(ctx, c, depth+1, snap, childPath)
		if ins.cfg.OmitNullProperties && childVal.Kind == model.KindPrimitive && isNullRendering(childVal.Primitive) {
			continue
		}
		members[c.Name] = childVal
	}
	val.Kind = model.KindObject
	val.Object = members

	if ins.cfg.DeduplicateByContent {
		hash := contentHash(v.Type, members)
		if firstPath, seen := snap.hashes[hash]; seen {
			val.Deduplicated = true
			val.DedupPath = firstPath
			val.Kind = model.KindPrimitive
			val.Object = nil
			val.Primitive = fmt.Sprintf("[see: %s]", firstPath)
		} else {
			snap.hashes[hash] = path
		}
	}

	return val
}

// contentHash hashes type plus sorted "name:type:primitive-value" triples
// of the immediate children only, per the spec's deliberate
// accuracy-for-brevity tradeoff (deep divergence in grandchildren is not
// detected).
func contentHash(typeName string, members map[string]*model.VariableValue) string {
	keys := make([]string, 0, len(members))
	for k := range members {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(typeName)
	for _, k := range keys {
		m := members[k]
		b.WriteByte('|')
		b.WriteString(k)
		b.WriteByte(':')
		b.WriteString(m.Type)
		b.WriteByte(':')
		fmt.Fprintf(&b, "%v", m.Primitive)
	}

	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}

// Evaluate evaluates each expression independently in watch context;
// failures are captured per-expression rather than aborting the batch.
func (ins *Inspector) Evaluate(ctx context.Context, frameID int, expressions []string) []model.EvaluationResult {
	results := make([]model.EvaluationResult, 0, len(expressions))
	for _, expr := range expressions {
		res, err := ins.src.Evaluate(ctx, expr, frameID, "watch")
		if err != nil {
			results = append(results, model.EvaluationResult{Expression: expr, Error: err.Error()})
			continue
		}
		results = append(results, model.EvaluationResult{Expression: expr, Result: res.Result, Type: res.Type})
	}
	return results
}

// Diff computes the created/modified/deleted changes between two locals
// snapshots. Modified entries carry only newValue.
func Diff(prev, curr map[string]*model.VariableValue) []model.VariableChange {
	var changes []model.VariableChange

	names := make(map[string]bool, len(prev)+len(curr))
	for k := range prev {
		names[k] = true
	}
	for k := range curr {
		names[k] = true
	}

	sorted := make([]string, 0, len(names))
	for k := range names {
		sorted = append(sorted, k)
	}
	sort.Strings(sorted)

	for _, name := range sorted {
		oldVal, hadOld := prev[name]
		newVal, hasNew := curr[name]

		switch {
		case !hadOld && hasNew:
			changes = append(changes, model.VariableChange{Name: name, Kind: model.ChangeCreated, NewValue: newVal})
		case hadOld && !hasNew:
			changes = append(changes, model.VariableChange{Name: name, Kind: model.ChangeDeleted, OldValue: oldVal})
		case hadOld && hasNew && !structurallyEqual(oldVal, newVal):
			changes = append(changes, model.VariableChange{Name: name, Kind: model.ChangeModified, NewValue: newVal})
		}
	}
	return changes
}

func structurallyEqual(a, b *model.VariableValue) bool {
	if a == nil || b == nil {
		return a == b
	}
	if a.Type != b.Type || a.Kind != b.Kind {
		return false
	}
	switch a.Kind {
	case model.KindPrimitive:
		return fmt.Sprintf("%v", a.Primitive) == fmt.Sprintf("%v", b.Primitive)
	case model.KindObject:
		if len(a.Object) != len(b.Object) {
			return false
		}
		for k, av := range a.Object {
			bv, ok := b.Object[k]
			if !ok || !structurallyEqual(av, bv) {
				return false
			}
		}
		return true
	case model.KindCollection:
		if a.Collection == nil || b.Collection == nil {
			return a.Collection == b.Collection
		}
		if len(a.Collection.Items) != len(b.Collection.Items) {
			return false
		}
		for i := range a.Collection.Items {
			if !structurallyEqual(a.Collection.Items[i], b.Collection.Items[i]) {
				return false
			}
		}
		return true
	}
	return false
}
