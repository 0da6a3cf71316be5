package scope

// Vsts is the scope family for Azure DevOps (formerly Visual Studio Team
// Services) personal access tokens. The zero value is the empty scope.
type Vsts struct {
	s set
}

// NewVsts builds a scope from raw scope identifiers. Intended for
// configuration parsing; prefer the predefined scopes below.
func NewVsts(items ...string) Vsts {
	return Vsts{s: newSet(items...)}
}

// Predefined Azure DevOps scopes.
var (
	VstsNone           = Vsts{s: newSet()}
	VstsBuildAccess    = Vsts{s: newSet("vso.build")}
	VstsBuildExecute   = Vsts{s: newSet("vso.build_execute")}
	VstsCodeRead       = Vsts{s: newSet("vso.code")}
	VstsCodeWrite      = Vsts{s: newSet("vso.code_write")}
	VstsCodeManage     = Vsts{s: newSet("vso.code_manage")}
	VstsPackagingRead  = Vsts{s: newSet("vso.packaging")}
	VstsPackagingWrite = Vsts{s: newSet("vso.packaging_write")}
	VstsProfileView    = Vsts{s: newSet("vso.profile")}
	VstsProjectRead    = Vsts{s: newSet("vso.project")}
	VstsTestRead       = Vsts{s: newSet("vso.test")}
	VstsTestWrite      = Vsts{s: newSet("vso.test_write")}
	VstsWorkRead       = Vsts{s: newSet("vso.work")}
	VstsWorkWrite      = Vsts{s: newSet("vso.work_write")}
)

// Union returns the scope containing members of either operand.
func (v Vsts) Union(o Vsts) Vsts {
	return Vsts{s: v.s.union(o.s)}
}

// Intersect returns the scope containing members of both operands.
func (v Vsts) Intersect(o Vsts) Vsts {
	return Vsts{s: v.s.intersect(o.s)}
}

// Difference returns the members of v that are not in o.
func (v Vsts) Difference(o Vsts) Vsts {
	return Vsts{s: v.s.difference(o.s)}
}

// SymmetricDifference returns the members in exactly one of the operands.
func (v Vsts) SymmetricDifference(o Vsts) Vsts {
	return Vsts{s: v.s.symmetricDifference(o.s)}
}

// Equal reports order-independent set equality.
func (v Vsts) Equal(o Vsts) bool {
	return v.s.equal(o.s)
}

// IsEmpty reports whether the scope has no members.
func (v Vsts) IsEmpty() bool {
	return len(v.s) == 0
}

// String returns the space-joined wire form in deterministic order.
func (v Vsts) String() string {
	return v.s.String()
}
