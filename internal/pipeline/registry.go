package pipeline

// Definition is the static description of one stage: the artifacts that must
// already exist before it may run, the artifacts it adds, and the stage that
// follows it. A Successor of StageTerminal ends the pipeline.
type Definition struct {
	Name      Stage
	Requires  []ArtifactKey
	Produces  []ArtifactKey
	Successor Stage
}

// Terminal reports whether the stage is the last one in the sequence.
func (d Definition) Terminal() bool {
	return d.Successor == StageTerminal
}

// Registry holds the fixed, ordered stage sequence.
type Registry struct {
	order  []Definition
	byName map[Stage]Definition
}

// NewRegistry returns the pipeline's stage registry:
//
//	requirement -> testcases -> samples_junit -> test_results -> jira
func NewRegistry() *Registry {
	defs := []Definition{
		{
			Name:      StageRequirement,
			Produces:  []ArtifactKey{ArtifactRequirementText},
			Successor: StageTestCases,
		},
		{
			Name:      StageTestCases,
			Requires:  []ArtifactKey{ArtifactRequirementText},
			Produces:  []ArtifactKey{ArtifactTestCaseIDs, ArtifactTestCases, ArtifactISOValidation},
			Successor: StageSamplesJUnit,
		},
		{
			Name:      StageSamplesJUnit,
			Requires:  []ArtifactKey{ArtifactTestCaseIDs},
			Produces:  []ArtifactKey{ArtifactJUnitRefs, ArtifactSamples},
			Successor: StageTestResults,
		},
		{
			Name:      StageTestResults,
			Requires:  []ArtifactKey{ArtifactJUnitRefs},
			Produces:  []ArtifactKey{ArtifactTestResults},
			Successor: StageJira,
		},
		{
			Name:      StageJira,
			Requires:  []ArtifactKey{ArtifactTestCaseIDs, ArtifactTestResults},
			Produces:  []ArtifactKey{ArtifactJiraIssueRefs},
			Successor: StageTerminal,
		},
	}

	byName := make(map[Stage]Definition, len(defs))
	for _, d := range defs {
		byName[d.Name] = d
	}
	return &Registry{order: defs, byName: byName}
}

// First returns the entry stage of the pipeline.
func (r *Registry) First() Stage {
	return r.order[0].Name
}

// Lookup returns the definition for the named stage.
func (r *Registry) Lookup(stage Stage) (Definition, bool) {
	d, ok := r.byName[stage]
	return d, ok
}

// Stages returns the stage sequence in execution order.
func (r *Registry) Stages() []Stage {
	out := make([]Stage, len(r.order))
	for i, d := range r.order {
		out[i] = d.Name
	}
	return out
}
