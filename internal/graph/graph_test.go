package graph

import (
	"encoding/json"
	"errors"
	"reflect"
	"slices"
	"testing"
	"time"

	"github.com/alfredjeanlab/tendergraph/internal/model"
)

// mustNode creates a node or fails the test.
func mustNode(t *testing.T, g *Graph, typ model.NodeType, title string, opts ...NodeOption) *model.Node {
	t.Helper()
	n, err := g.CreateNode(typ, title, "", opts...)
	if err != nil {
		t.Fatalf("CreateNode(%q): %v", title, err)
	}
	return n
}

// mustConnect creates an edge or fails the test.
func mustConnect(t *testing.T, g *Graph, src, dst string, typ model.EdgeType) *model.Edge {
	t.Helper()
	e, err := g.Connect(src, dst, typ)
	if err != nil {
		t.Fatalf("Connect(%s -> %s): %v", src, dst, err)
	}
	return e
}

func ids(nodes []*model.Node) []string {
	out := make([]string, len(nodes))
	for i, n := range nodes {
		out[i] = n.ID
	}
	slices.Sort(out)
	return out
}

func TestCreateNode_Defaults(t *testing.T) {
	g := New()
	n := mustNode(t, g, model.NodeRequirement, "Provide references")

	if n.ID == "" {
		t.Fatal("expected generated ID")
	}
	if n.Status != model.StatusNotStarted {
		t.Errorf("Status = %q, want %q", n.Status, model.StatusNotStarted)
	}
	if n.Confidence != 1.0 {
		t.Errorf("Confidence = %v, want 1.0", n.Confidence)
	}
	if n.CreatedAt.IsZero() || n.UpdatedAt.IsZero() {
		t.Error("timestamps not set")
	}
	if got, ok := g.GetNode(n.ID); !ok || got != n {
		t.Error("GetNode did not return the stored node")
	}
	if g.Dependencies(n.ID) != nil || g.Dependents(n.ID) != nil {
		t.Error("new node should have no neighbours")
	}
}

func TestCreateNode_InvalidType(t *testing.T) {
	g := New()
	if _, err := g.CreateNode("task", "x", ""); err == nil {
		t.Fatal("expected error for invalid type")
	}
	if g.NodeCount() != 0 {
		t.Errorf("NodeCount = %d, want 0", g.NodeCount())
	}
}

func TestCreateNode_DuplicateTitlesAllowed(t *testing.T) {
	g := New()
	a := mustNode(t, g, model.NodeField, "Name")
	b := mustNode(t, g, model.NodeField, "Name")
	if a.ID == b.ID {
		t.Fatal("duplicate titles should produce distinct nodes")
	}
	if g.NodeCount() != 2 {
		t.Errorf("NodeCount = %d, want 2", g.NodeCount())
	}
}

func TestGetNode_Absent(t *testing.T) {
	g := New()
	if n, ok := g.GetNode("nd-missing"); ok || n != nil {
		t.Errorf("GetNode(missing) = %v, %v; want nil, false", n, ok)
	}
}

func TestDependencies_OnlyDependencyEdgeTypes(t *testing.T) {
	g := New()
	a := mustNode(t, g, model.NodeRequirement, "A")
	for _, tc := range []struct {
		typ  model.EdgeType
		want bool
	}{
		{model.EdgeDependsOn, true},
		{model.EdgeRequires, true},
		{model.EdgeConditionalOn, true},
		{model.EdgeReferences, false},
		{model.EdgePartOf, false},
		{model.EdgeTriggers, false},
		{model.EdgeMutuallyExclusive, false},
		{model.EdgeRequiredBy, false},
	} {
		target := mustNode(t, g, model.NodeDocument, string(tc.typ))
		mustConnect(t, g, a.ID, target.ID, tc.typ)
		found := slices.Contains(ids(g.Dependencies(a.ID)), target.ID)
		if found != tc.want {
			t.Errorf("edge %q: in Dependencies = %v, want %v", tc.typ, found, tc.want)
		}
		dependent := slices.Contains(ids(g.Dependents(target.ID)), a.ID)
		if dependent != tc.want {
			t.Errorf("edge %q: in Dependents = %v, want %v", tc.typ, dependent, tc.want)
		}
	}
}

func TestDanglingEdgesAreSkipped(t *testing.T) {
	g := New()
	a := mustNode(t, g, model.NodeRequirement, "A")
	b := mustNode(t, g, model.NodeRequirement, "B")
	mustConnect(t, g, a.ID, "nd-ghost", model.EdgeRequires)
	mustConnect(t, g, "nd-ghost", b.ID, model.EdgeRequires)

	if deps := g.Dependencies(a.ID); len(deps) != 0 {
		t.Errorf("Dependencies(A) = %v, want none", ids(deps))
	}
	if deps := g.Dependents(b.ID); len(deps) != 0 {
		t.Errorf("Dependents(B) = %v, want none", ids(deps))
	}
	if g.EdgeCount() != 2 {
		t.Errorf("EdgeCount = %d, want 2 (dangling edges are stored)", g.EdgeCount())
	}

	// A node with only dangling dependencies is actionable.
	if !slices.Contains(ids(g.ActionableItems()), a.ID) {
		t.Error("A should be actionable")
	}
}

func TestDanglingAfterEndpointAddedLater(t *testing.T) {
	g := New()
	a := mustNode(t, g, model.NodeRequirement, "A")
	mustConnect(t, g, a.ID, "nd-later", model.EdgeRequires)
	mustNode(t, g, model.NodeDocument, "Later", WithID("nd-later"))

	deps := g.Dependencies(a.ID)
	if len(deps) != 1 || deps[0].ID != "nd-later" {
		t.Errorf("Dependencies(A) = %v, want [nd-later]", ids(deps))
	}
}

func TestUpdateStatus_NotFound(t *testing.T) {
	g := New()
	if _, err := g.UpdateStatus("nd-missing", model.StatusCompleted); !errors.Is(err, ErrNotFound) {
		t.Errorf("UpdateStatus(missing) err = %v, want ErrNotFound", err)
	}
	if g.NodeCount() != 0 {
		t.Error("UpdateStatus fabricated a node")
	}
}

func TestUpdateStatus_InvalidStatus(t *testing.T) {
	g := New()
	n := mustNode(t, g, model.NodeRequirement, "A")
	if _, err := g.UpdateStatus(n.ID, "done"); err == nil {
		t.Fatal("expected error for invalid status")
	}
	if n.Status != model.StatusNotStarted {
		t.Errorf("Status = %q, want unchanged", n.Status)
	}
}

func TestUpdateStatus_TouchesUpdatedAt(t *testing.T) {
	g := New()
	n := mustNode(t, g, model.NodeRequirement, "A")
	n.UpdatedAt = time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	if _, err := g.UpdateStatus(n.ID, model.StatusInProgress); err != nil {
		t.Fatal(err)
	}
	if !n.UpdatedAt.After(time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)) {
		t.Error("UpdatedAt was not refreshed")
	}
}

func TestUpdateStatus_PropagationUnblocksOnlyWhenAllDepsCompleted(t *testing.T) {
	g := New()
	dep1 := mustNode(t, g, model.NodeDocument, "Dep 1")
	dep2 := mustNode(t, g, model.NodeDocument, "Dep 2")
	blocked := mustNode(t, g, model.NodeRequirement, "Blocked", WithStatus(model.StatusBlocked))
	mustConnect(t, g, blocked.ID, dep1.ID, model.EdgeRequires)
	mustConnect(t, g, blocked.ID, dep2.ID, model.EdgeDependsOn)

	unblocked, err := g.UpdateStatus(dep1.ID, model.StatusCompleted)
	if err != nil {
		t.Fatal(err)
	}
	if len(unblocked) != 0 || blocked.Status != model.StatusBlocked {
		t.Fatalf("after first dep: status = %q, unblocked = %v; want still blocked", blocked.Status, unblocked)
	}

	unblocked, err = g.UpdateStatus(dep2.ID, model.StatusCompleted)
	if err != nil {
		t.Fatal(err)
	}
	if blocked.Status != model.StatusNotStarted {
		t.Errorf("status = %q, want %q", blocked.Status, model.StatusNotStarted)
	}
	if !reflect.DeepEqual(unblocked, []string{blocked.ID}) {
		t.Errorf("unblocked = %v, want [%s]", unblocked, blocked.ID)
	}
}

func TestUpdateStatus_NeverCompletesAsSideEffect(t *testing.T) {
	g := New()
	root := mustNode(t, g, model.NodeDocument, "Root")
	var chain []*model.Node
	prev := root
	for _, title := range []string{"L1", "L2", "L3"} {
		n := mustNode(t, g, model.NodeRequirement, title, WithStatus(model.StatusBlocked))
		mustConnect(t, g, n.ID, prev.ID, model.EdgeRequires)
		chain = append(chain, n)
		prev = n
	}
	other := mustNode(t, g, model.NodeRequirement, "Other", WithStatus(model.StatusInProgress))
	mustConnect(t, g, other.ID, root.ID, model.EdgeRequires)

	if _, err := g.UpdateStatus(root.ID, model.StatusCompleted); err != nil {
		t.Fatal(err)
	}
	for _, n := range g.Nodes() {
		if n.ID != root.ID && n.Status == model.StatusCompleted {
			t.Errorf("node %s became completed as a side effect", n.Title)
		}
	}
	// Single hop: only L1 is unblocked.
	if chain[0].Status != model.StatusNotStarted {
		t.Errorf("L1 status = %q, want not_started", chain[0].Status)
	}
	if chain[1].Status != model.StatusBlocked || chain[2].Status != model.StatusBlocked {
		t.Error("propagation went further than one hop")
	}
	if other.Status != model.StatusInProgress {
		t.Errorf("non-blocked dependent status = %q, want unchanged", other.Status)
	}

	// Completing L1 unwinds the next level.
	if _, err := g.UpdateStatus(chain[0].ID, model.StatusCompleted); err != nil {
		t.Fatal(err)
	}
	if chain[1].Status != model.StatusNotStarted {
		t.Errorf("L2 status = %q, want not_started", chain[1].Status)
	}
}

func TestEvaluateConditions(t *testing.T) {
	g := New()
	cond := mustNode(t, g, model.NodeCondition, "Bidder is a consortium")
	dep := mustNode(t, g, model.NodeDocument, "Consortium declaration")
	unrelated := mustNode(t, g, model.NodeDocument, "Reference list")
	mustConnect(t, g, dep.ID, cond.ID, model.EdgeConditionalOn)
	mustConnect(t, g, unrelated.ID, cond.ID, model.EdgeReferences)

	// Unknown condition leaves everything alone.
	if changed := g.EvaluateConditions(); changed != 0 {
		t.Errorf("changed = %d, want 0", changed)
	}

	if err := g.SetConditionMet(cond.ID, model.Bool(false)); err != nil {
		t.Fatal(err)
	}
	if changed := g.EvaluateConditions(); changed != 1 {
		t.Errorf("changed = %d, want 1", changed)
	}
	if dep.Status != model.StatusNotApplicable {
		t.Errorf("dependent status = %q, want not_applicable", dep.Status)
	}
	if unrelated.Status != model.StatusNotStarted {
		t.Errorf("references edge affected status: %q", unrelated.Status)
	}

	// Idempotent.
	if changed := g.EvaluateConditions(); changed != 0 {
		t.Errorf("second evaluation changed = %d, want 0", changed)
	}

	if err := g.SetConditionMet(cond.ID, model.Bool(true)); err != nil {
		t.Fatal(err)
	}
	g.EvaluateConditions()
	if dep.Status != model.StatusNotStarted {
		t.Errorf("dependent status = %q, want not_started after condition met", dep.Status)
	}
}

func TestSetConditionMet_WrongType(t *testing.T) {
	g := New()
	n := mustNode(t, g, model.NodeField, "Name")
	if err := g.SetConditionMet(n.ID, model.Bool(true)); err == nil {
		t.Error("expected error for non-condition node")
	}
	if err := g.SetConditionMet("nd-missing", nil); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestSetCheckboxState_CompletesAndPropagates(t *testing.T) {
	g := New()
	box := mustNode(t, g, model.NodeCheckbox, "Accept terms")
	waiting := mustNode(t, g, model.NodeSignature, "Sign", WithStatus(model.StatusBlocked))
	mustConnect(t, g, waiting.ID, box.ID, model.EdgeRequires)

	unblocked, err := g.SetCheckboxState(box.ID, model.Bool(true))
	if err != nil {
		t.Fatal(err)
	}
	if box.Status != model.StatusCompleted || !*box.CheckboxState {
		t.Errorf("box status = %q, state = %v", box.Status, *box.CheckboxState)
	}
	if len(unblocked) != 1 || waiting.Status != model.StatusNotStarted {
		t.Errorf("dependent status = %q, unblocked = %v", waiting.Status, unblocked)
	}
}

func TestActionableItems_BlockedVersusNotApplicableDependency(t *testing.T) {
	g := New()
	dep := mustNode(t, g, model.NodeDocument, "Dependency", WithStatus(model.StatusBlocked))
	item := mustNode(t, g, model.NodeRequirement, "Item")
	mustConnect(t, g, item.ID, dep.ID, model.EdgeRequires)

	if slices.Contains(ids(g.ActionableItems()), item.ID) {
		t.Fatal("item with a blocked dependency must not be actionable")
	}

	if _, err := g.UpdateStatus(dep.ID, model.StatusNotApplicable); err != nil {
		t.Fatal(err)
	}
	if !slices.Contains(ids(g.ActionableItems()), item.ID) {
		t.Fatal("item must be actionable once its dependency is not_applicable")
	}
}

func TestActionableItems_StatusFilter(t *testing.T) {
	g := New()
	want := []string{
		mustNode(t, g, model.NodeField, "a", WithStatus(model.StatusNotStarted)).ID,
		mustNode(t, g, model.NodeField, "b", WithStatus(model.StatusInProgress)).ID,
	}
	mustNode(t, g, model.NodeField, "c", WithStatus(model.StatusCompleted))
	mustNode(t, g, model.NodeField, "d", WithStatus(model.StatusBlocked))
	mustNode(t, g, model.NodeField, "e", WithStatus(model.StatusNotApplicable))

	slices.Sort(want)
	if got := ids(g.ActionableItems()); !reflect.DeepEqual(got, want) {
		t.Errorf("ActionableItems = %v, want %v", got, want)
	}
}

func TestCompletionStats_ExcludesNotApplicable(t *testing.T) {
	g := New()
	statuses := []model.Status{
		model.StatusNotApplicable, model.StatusNotApplicable,
		model.StatusCompleted, model.StatusCompleted, model.StatusCompleted, model.StatusCompleted,
		model.StatusNotStarted, model.StatusNotStarted, model.StatusInProgress, model.StatusBlocked,
	}
	for i, s := range statuses {
		mustNode(t, g, model.NodeRequirement, string(rune('a'+i)), WithStatus(s))
	}

	stats := g.CompletionStats()
	if stats.TotalItems != 10 || stats.ApplicableItems != 8 || stats.CompletedItems != 4 {
		t.Errorf("stats = %+v", stats)
	}
	if stats.CompletionPercentage != 50.0 {
		t.Errorf("CompletionPercentage = %v, want 50.0", stats.CompletionPercentage)
	}
	if stats.ByStatus[model.StatusNotStarted] != 2 || stats.ByStatus[model.StatusBlocked] != 1 {
		t.Errorf("ByStatus = %v", stats.ByStatus)
	}
}

func TestCompletionStats_ZeroDenominator(t *testing.T) {
	for _, tc := range []struct {
		name     string
		statuses []model.Status
	}{
		{"Empty", nil},
		{"AllNotApplicable", []model.Status{model.StatusNotApplicable, model.StatusNotApplicable}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			g := New()
			for _, s := range tc.statuses {
				mustNode(t, g, model.NodeField, "x", WithStatus(s))
			}
			if pct := g.CompletionStats().CompletionPercentage; pct != 0 {
				t.Errorf("CompletionPercentage = %v, want 0", pct)
			}
		})
	}
}

func TestCompletionStats_Rounding(t *testing.T) {
	g := New()
	mustNode(t, g, model.NodeField, "a", WithStatus(model.StatusCompleted))
	mustNode(t, g, model.NodeField, "b")
	mustNode(t, g, model.NodeField, "c")
	if pct := g.CompletionStats().CompletionPercentage; pct != 33.3 {
		t.Errorf("CompletionPercentage = %v, want 33.3", pct)
	}
}

func TestCriticalPath_RanksByTransitiveDependents(t *testing.T) {
	g := New()
	root := mustNode(t, g, model.NodeDocument, "Root")
	mid := mustNode(t, g, model.NodeRequirement, "Mid")
	leaf1 := mustNode(t, g, model.NodeField, "Leaf 1")
	leaf2 := mustNode(t, g, model.NodeField, "Leaf 2")
	done := mustNode(t, g, model.NodeDocument, "Done", WithStatus(model.StatusCompleted))
	mustConnect(t, g, mid.ID, root.ID, model.EdgeRequires)
	mustConnect(t, g, leaf1.ID, mid.ID, model.EdgeRequires)
	mustConnect(t, g, leaf2.ID, mid.ID, model.EdgeDependsOn)
	mustConnect(t, g, root.ID, done.ID, model.EdgeRequires)

	path := g.CriticalPath()
	if len(path) != 4 {
		t.Fatalf("len(CriticalPath) = %d, want 4 (completed excluded)", len(path))
	}
	if path[0].Node.ID != root.ID || path[0].Dependents != 3 {
		t.Errorf("path[0] = %s (%d), want Root (3)", path[0].Node.Title, path[0].Dependents)
	}
	if path[1].Node.ID != mid.ID || path[1].Dependents != 2 {
		t.Errorf("path[1] = %s (%d), want Mid (2)", path[1].Node.Title, path[1].Dependents)
	}
}

func TestCriticalPath_TerminatesOnCycles(t *testing.T) {
	g := New()
	a := mustNode(t, g, model.NodeRequirement, "A")
	b := mustNode(t, g, model.NodeRequirement, "B")
	c := mustNode(t, g, model.NodeRequirement, "C")
	mustConnect(t, g, a.ID, b.ID, model.EdgeRequires)
	mustConnect(t, g, b.ID, c.ID, model.EdgeRequires)
	mustConnect(t, g, c.ID, a.ID, model.EdgeRequires)

	path := g.CriticalPath()
	if len(path) != 3 {
		t.Fatalf("len = %d, want 3", len(path))
	}
	for _, cn := range path {
		if cn.Dependents != 2 {
			t.Errorf("%s dependents = %d, want 2", cn.Node.Title, cn.Dependents)
		}
	}
}

func TestCriticalPath_LimitsToTen(t *testing.T) {
	g := New()
	for i := 0; i < 15; i++ {
		mustNode(t, g, model.NodeField, string(rune('a'+i)))
	}
	if got := len(g.CriticalPath()); got != 10 {
		t.Errorf("len(CriticalPath) = %d, want 10", got)
	}
}

func TestMergeDuplicateNodes(t *testing.T) {
	g := New()
	keep := mustNode(t, g, model.NodeDocument, "Anlage 3",
		WithTags("anlage"), WithMetadata("is_required", true), WithMetadata("origin", "keep"))
	drop := mustNode(t, g, model.NodeDocument, "Anlage 3 Referenzen",
		WithTags("placeholder", "anlage"), WithMetadata("origin", "drop"), WithMetadata("extra", 1.0))
	drop.SourceText = "see Anlage 3"
	other := mustNode(t, g, model.NodeRequirement, "Provide references")
	target := mustNode(t, g, model.NodeCondition, "If consortium")
	in := mustConnect(t, g, other.ID, drop.ID, model.EdgeRequires)
	out := mustConnect(t, g, drop.ID, target.ID, model.EdgeConditionalOn)

	before := g.NodeCount()
	merged, err := g.MergeDuplicateNodes(keep.ID, drop.ID)
	if err != nil {
		t.Fatalf("MergeDuplicateNodes: %v", err)
	}
	if merged != keep {
		t.Error("expected the kept node to be returned")
	}
	if g.NodeCount() != before-1 {
		t.Errorf("NodeCount = %d, want %d", g.NodeCount(), before-1)
	}
	if _, ok := g.GetNode(drop.ID); ok {
		t.Error("dropped node still present")
	}
	for _, e := range g.Edges() {
		if e.SourceID == drop.ID || e.TargetID == drop.ID {
			t.Errorf("edge %s still references dropped node", e.ID)
		}
	}
	if in.TargetID != keep.ID || out.SourceID != keep.ID {
		t.Error("edges were not re-pointed to the kept node")
	}
	if got := ids(g.Dependents(keep.ID)); !reflect.DeepEqual(got, []string{other.ID}) {
		t.Errorf("Dependents(keep) = %v, want [%s]", got, other.ID)
	}
	if got := ids(g.Dependencies(keep.ID)); !reflect.DeepEqual(got, []string{target.ID}) {
		t.Errorf("Dependencies(keep) = %v, want [%s]", got, target.ID)
	}
	if want := []string{"anlage", "placeholder"}; !reflect.DeepEqual(keep.Tags, want) {
		t.Errorf("Tags = %v, want %v", keep.Tags, want)
	}
	if keep.Metadata["origin"] != "keep" {
		t.Errorf("metadata conflict: origin = %v, want keep", keep.Metadata["origin"])
	}
	if keep.Metadata["extra"] != 1.0 {
		t.Error("metadata from dropped node not merged")
	}
	if keep.SourceText != "see Anlage 3" {
		t.Errorf("SourceText = %q, want backfilled", keep.SourceText)
	}
}

func TestMergeDuplicateNodes_KeepsExistingSourceText(t *testing.T) {
	g := New()
	keep := mustNode(t, g, model.NodeDocument, "A", WithSource("a.pdf", "p1", "original"))
	drop := mustNode(t, g, model.NodeDocument, "B", WithSource("b.pdf", "p2", "other"))
	if _, err := g.MergeDuplicateNodes(keep.ID, drop.ID); err != nil {
		t.Fatal(err)
	}
	if keep.SourceText != "original" {
		t.Errorf("SourceText = %q, want original", keep.SourceText)
	}
}

func TestMergeDuplicateNodes_Errors(t *testing.T) {
	g := New()
	a := mustNode(t, g, model.NodeDocument, "A")

	if _, err := g.MergeDuplicateNodes(a.ID, a.ID); !errors.Is(err, ErrSelfMerge) {
		t.Errorf("self merge err = %v, want ErrSelfMerge", err)
	}
	if _, err := g.MergeDuplicateNodes(a.ID, "nd-missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing drop err = %v, want ErrNotFound", err)
	}
	if _, err := g.MergeDuplicateNodes("nd-missing", a.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing keep err = %v, want ErrNotFound", err)
	}
	if g.NodeCount() != 1 {
		t.Errorf("NodeCount = %d, want 1", g.NodeCount())
	}
}

func TestRemoveNodesByDocument(t *testing.T) {
	g := New()
	a := mustNode(t, g, model.NodeRequirement, "A", WithSource("a.pdf", "", ""))
	a2 := mustNode(t, g, model.NodeField, "A2", WithSource("a.pdf", "", ""))
	b := mustNode(t, g, model.NodeRequirement, "B", WithSource("b.pdf", "", ""))
	mustConnect(t, g, b.ID, a.ID, model.EdgeRequires)
	mustConnect(t, g, a2.ID, a.ID, model.EdgeRequires)

	if removed := g.RemoveNodesByDocument("a.pdf"); removed != 2 {
		t.Errorf("removed = %d, want 2", removed)
	}
	if g.NodeCount() != 1 || g.EdgeCount() != 0 {
		t.Errorf("counts = %d nodes %d edges, want 1 and 0", g.NodeCount(), g.EdgeCount())
	}
	if len(g.Dependencies(b.ID)) != 0 {
		t.Error("B still has dependencies")
	}
	if removed := g.RemoveNodesByDocument("missing.pdf"); removed != 0 {
		t.Errorf("removed = %d, want 0", removed)
	}
}

func TestRemoveNode(t *testing.T) {
	g := New()
	a := mustNode(t, g, model.NodeRequirement, "A")
	if err := g.RemoveNode(a.ID); err != nil {
		t.Fatal(err)
	}
	if err := g.RemoveNode(a.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("second remove err = %v, want ErrNotFound", err)
	}
}

func TestFindNodes(t *testing.T) {
	g := New()
	a, _ := g.CreateNode(model.NodeDocument, "Eigenerklärung", "Formblatt zur Tariftreue")
	b, _ := g.CreateNode(model.NodeField, "Umsatz", "letzte drei Geschäftsjahre")
	g.CreateNode(model.NodeField, "Name", "")

	for _, tc := range []struct {
		query string
		want  []string
	}{
		{"EIGENERKLÄRUNG", []string{a.ID}},
		{"tariftreue", []string{a.ID}},
		{"geschäftsjahre", []string{b.ID}},
		{"nothing", nil},
	} {
		got := g.FindNodes(tc.query)
		var gotIDs []string
		for _, n := range got {
			gotIDs = append(gotIDs, n.ID)
		}
		if !reflect.DeepEqual(gotIDs, tc.want) {
			t.Errorf("FindNodes(%q) = %v, want %v", tc.query, gotIDs, tc.want)
		}
	}
}

func TestNodesByFilters(t *testing.T) {
	g := New()
	mustNode(t, g, model.NodeDocument, "A", WithSource("x.pdf", "", ""))
	mustNode(t, g, model.NodeDocument, "B", WithStatus(model.StatusCompleted))
	mustNode(t, g, model.NodeField, "C", WithSource("x.pdf", "", ""))

	if got := len(g.NodesByType(model.NodeDocument)); got != 2 {
		t.Errorf("NodesByType(document) = %d, want 2", got)
	}
	if got := len(g.NodesByStatus(model.StatusCompleted)); got != 1 {
		t.Errorf("NodesByStatus(completed) = %d, want 1", got)
	}
	if got := len(g.NodesByDocument("x.pdf")); got != 2 {
		t.Errorf("NodesByDocument(x.pdf) = %d, want 2", got)
	}
}

func buildSampleGraph(t *testing.T) *Graph {
	t.Helper()
	g := New()
	deadline := time.Date(2026, 3, 31, 12, 0, 0, 0, time.UTC)
	doc := mustNode(t, g, model.NodeDocument, "Angebotsschreiben",
		WithSource("vergabe.pdf", "Seite 2", "Das Angebotsschreiben ist zwingend"),
		WithTags("form", "mandatory"), WithMetadata("is_required", true), WithDeadline(deadline))
	box := mustNode(t, g, model.NodeCheckbox, "Tariftreue", WithCheckboxState(model.Bool(false)), WithConfidence(0.75))
	cond := mustNode(t, g, model.NodeCondition, "Bietergemeinschaft", WithConditionMet(model.Bool(true)))
	mustConnect(t, g, box.ID, doc.ID, model.EdgeRequires)
	if _, err := g.Connect(doc.ID, cond.ID, model.EdgeConditionalOn, WithDescription("doc conditional"), WithEdgeConfidence(0.5)); err != nil {
		t.Fatal(err)
	}
	mustConnect(t, g, box.ID, "nd-dangling", model.EdgeReferences)
	return g
}

func TestDataRoundTrip(t *testing.T) {
	g := buildSampleGraph(t)
	data := g.Data()

	restored, err := FromData(data)
	if err != nil {
		t.Fatalf("FromData: %v", err)
	}
	if !reflect.DeepEqual(restored.Data(), data) {
		t.Error("FromData(Data()) does not reproduce the graph")
	}

	// Data is a copy.
	data.Nodes[0].Title = "changed"
	if n, _ := g.GetNode(data.Nodes[0].ID); n.Title == "changed" {
		t.Error("Data shares nodes with the graph")
	}
}

func TestJSONRoundTrip(t *testing.T) {
	g := buildSampleGraph(t)
	raw, err := json.Marshal(g)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var generic map[string][]map[string]any
	if err := json.Unmarshal(raw, &generic); err != nil {
		t.Fatalf("Unmarshal generic: %v", err)
	}
	if generic["nodes"][0]["type"] != "document" || generic["nodes"][0]["status"] != "not_started" {
		t.Errorf("enums not encoded as strings: %v", generic["nodes"][0])
	}
	if generic["nodes"][0]["deadline"] != "2026-03-31T12:00:00Z" {
		t.Errorf("deadline = %v, want RFC 3339", generic["nodes"][0]["deadline"])
	}

	restored := New()
	if err := json.Unmarshal(raw, restored); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	want, got := g.Data(), restored.Data()
	if len(got.Nodes) != len(want.Nodes) || len(got.Edges) != len(want.Edges) {
		t.Fatalf("counts = %d/%d, want %d/%d", len(got.Nodes), len(got.Edges), len(want.Nodes), len(want.Edges))
	}
	for i := range want.Nodes {
		w, r := want.Nodes[i], got.Nodes[i]
		if !w.CreatedAt.Equal(r.CreatedAt) || !w.UpdatedAt.Equal(r.UpdatedAt) {
			t.Errorf("node %s timestamps differ", w.ID)
		}
		r.CreatedAt, r.UpdatedAt = w.CreatedAt, w.UpdatedAt
		if !reflect.DeepEqual(w, r) {
			t.Errorf("node %s differs after round trip:\n got %+v\nwant %+v", w.ID, r, w)
		}
	}
	if !reflect.DeepEqual(got.Edges, want.Edges) {
		t.Errorf("edges differ after round trip")
	}
	if deps := restored.Dependencies(want.Nodes[1].ID); len(deps) != 1 {
		t.Errorf("restored adjacency broken: %d dependencies", len(deps))
	}
}

func TestFromData_InvalidType(t *testing.T) {
	_, err := FromData(&model.GraphData{Nodes: []*model.Node{{ID: "nd-1", Type: "bogus"}}})
	if err == nil {
		t.Fatal("expected error")
	}
}
