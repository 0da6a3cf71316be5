package scope

// Github is the scope family for GitHub OAuth and personal access tokens.
// The zero value is the empty scope.
type Github struct {
	s set
}

// NewGithub builds a scope from raw scope identifiers.
func NewGithub(items ...string) Github {
	return Github{s: newSet(items...)}
}

// Predefined GitHub scopes.
var (
	GithubNone          = Github{s: newSet()}
	GithubGist          = Github{s: newSet("gist")}
	GithubNotifications = Github{s: newSet("notifications")}
	GithubRepo          = Github{s: newSet("repo")}
	GithubRepoDeployment = Github{s: newSet("repo_deployment")}
	GithubRepoStatus    = Github{s: newSet("repo:status")}
	GithubUser          = Github{s: newSet("user")}
	GithubUserEmail     = Github{s: newSet("user:email")}
)

// Union returns the scope containing members of either operand.
func (g Github) Union(o Github) Github {
	return Github{s: g.s.union(o.s)}
}

// Intersect returns the scope containing members of both operands.
func (g Github) Intersect(o Github) Github {
	return Github{s: g.s.intersect(o.s)}
}

// Difference returns the members of g that are not in o.
func (g Github) Difference(o Github) Github {
	return Github{s: g.s.difference(o.s)}
}

// SymmetricDifference returns the members in exactly one of the operands.
func (g Github) SymmetricDifference(o Github) Github {
	return Github{s: g.s.symmetricDifference(o.s)}
}

// Equal reports order-independent set equality.
func (g Github) Equal(o Github) bool {
	return g.s.equal(o.s)
}

// IsEmpty reports whether the scope has no members.
func (g Github) IsEmpty() bool {
	return len(g.s) == 0
}

// String returns the space-joined wire form in deterministic order.
func (g Github) String() string {
	return g.s.String()
}

// List returns the scope identifiers in deterministic order.
func (g Github) List() []string {
	return g.s.sorted()
}
