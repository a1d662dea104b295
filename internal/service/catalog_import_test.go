package service

import (
	"algo_learn_backend/internal/util"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleCatalog = `
modules:
  - title: Arrays and Hashing
    order: 1
    problems:
      - title: Two Sum
        difficulty: easy
        order: 1
        hints:
          - text: use a map
        test_cases:
          - input: "1 2"
            expected: "3"
      - title: Top K Frequent
        difficulty: medium
        xp_reward: 30
        order: 2
        test_cases:
          - input: "1 1 2"
            expected: "1"
            hidden: true
  - title: Two Pointers
    order: 2
    prerequisites: [arrays-and-hashing]
    problems:
      - title: Valid Palindrome
        difficulty: easy
        order: 1
        test_cases:
          - input: "aba"
            expected: "true"
`

func TestCatalogImport(t *testing.T) {
	env := newTestEnv(t)
	cache := &countingCatalogCache{}
	env.modules.Cache = cache
	env.problems.Cache = cache
	importer := NewCatalogImporter(env.modules, env.problems)

	report, err := importer.Import(context.Background(), strings.NewReader(sampleCatalog))
	require.NoError(t, err)
	assert.Equal(t, &ImportReport{ModulesCreated: 2, ProblemsCreated: 3}, report)
	assert.Equal(t, 5, cache.calls)

	arrays, err := env.modules.ModuleRepo.FindBySlug("arrays-and-hashing")
	require.NoError(t, err)
	assert.Equal(t, 40, arrays.TotalXP)

	pointers, err := env.modules.ModuleRepo.FindBySlug("two-pointers")
	require.NoError(t, err)
	assert.Equal(t, []uint{arrays.ID}, []uint(pointers.Prerequisites))

	problems, err := env.problems.ProblemRepo.FindByModule(arrays.ID, false)
	require.NoError(t, err)
	require.Len(t, problems, 2)
	assert.True(t, problems[1].TestCases[0].IsHidden)

	// 重复导入只更新，不产生重复数据
	report, err = importer.Import(context.Background(), strings.NewReader(sampleCatalog))
	require.NoError(t, err)
	assert.Equal(t, &ImportReport{ModulesUpdated: 2, ProblemsUpdated: 3}, report)

	problems, err = env.problems.ProblemRepo.FindByModule(arrays.ID, false)
	require.NoError(t, err)
	assert.Len(t, problems, 2)
}

func TestCatalogImportRejectsBadInput(t *testing.T) {
	env := newTestEnv(t)
	importer := NewCatalogImporter(env.modules, env.problems)

	cases := []struct {
		name    string
		catalog string
		want    *util.AppError
	}{
		{"empty", "", &util.AppError{Kind: util.KindValidation}},
		{"unknown field", "modules:\n  - title: A\n    colour: red\n", &util.AppError{Kind: util.KindValidation}},
		{"no modules", "modules: []\n", &util.AppError{Kind: util.KindValidation}},
		{"unknown prerequisite", "modules:\n  - title: A\n    prerequisites: [missing]\n", util.ErrUnknownPrerequisite},
		{"bad difficulty", "modules:\n  - title: A\n    problems:\n      - title: P\n        difficulty: legendary\n        test_cases:\n          - input: x\n            expected: y\n", &util.AppError{Kind: util.KindValidation}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := importer.Import(context.Background(), strings.NewReader(tc.catalog))
			require.Error(t, err)
			assert.True(t, errors.Is(err, tc.want), "got %v", err)
		})
	}
}
