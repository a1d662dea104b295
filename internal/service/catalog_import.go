package service

import (
	"algo_learn_backend/internal/model"
	"algo_learn_backend/internal/util"
	"algo_learn_backend/pkg/logger"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/gosimple/slug"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
	"gorm.io/gorm"
)

// CatalogFile 题库 YAML 文件结构，模块按文件顺序导入，先修模块用 slug 引用
type CatalogFile struct {
	Modules []CatalogModule `yaml:"modules"`
}

type CatalogModule struct {
	Title         string           `yaml:"title"`
	Slug          string           `yaml:"slug"`
	Description   string           `yaml:"description"`
	Order         int              `yaml:"order"`
	Prerequisites []string         `yaml:"prerequisites"`
	Active        *bool            `yaml:"active"`
	Problems      []CatalogProblem `yaml:"problems"`
}

type CatalogProblem struct {
	Title       string            `yaml:"title"`
	Slug        string            `yaml:"slug"`
	Description string            `yaml:"description"`
	Difficulty  string            `yaml:"difficulty"`
	XPReward    int               `yaml:"xp_reward"`
	Order       int               `yaml:"order"`
	Active      *bool             `yaml:"active"`
	Hints       []CatalogHint     `yaml:"hints"`
	TestCases   []CatalogTestCase `yaml:"test_cases"`
}

type CatalogHint struct {
	Text   string `yaml:"text"`
	XPCost int    `yaml:"xp_cost"`
}

type CatalogTestCase struct {
	Input    string `yaml:"input"`
	Expected string `yaml:"expected"`
	Hidden   bool   `yaml:"hidden"`
}

type ImportReport struct {
	ModulesCreated  int `json:"modulesCreated"`
	ModulesUpdated  int `json:"modulesUpdated"`
	ProblemsCreated int `json:"problemsCreated"`
	ProblemsUpdated int `json:"problemsUpdated"`
}

// CatalogImporter 按 slug 新增或更新模块与题目，重复导入同一文件结果不变
type CatalogImporter struct {
	Modules  *ModuleService
	Problems *ProblemService
}

func NewCatalogImporter(modules *ModuleService, problems *ProblemService) *CatalogImporter {
	return &CatalogImporter{Modules: modules, Problems: problems}
}

func ParseCatalog(r io.Reader) (*CatalogFile, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var file CatalogFile
	if err := dec.Decode(&file); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, util.Validation("catalog is empty")
		}
		return nil, util.NewError(util.KindValidation, "invalid catalog: "+err.Error(), err)
	}
	if len(file.Modules) == 0 {
		return nil, util.Validation("catalog has no modules")
	}
	return &file, nil
}

// Import 每个模块与题目各自提交，出错时返回已完成部分的统计
func (c *CatalogImporter) Import(ctx context.Context, r io.Reader) (*ImportReport, error) {
	file, err := ParseCatalog(r)
	if err != nil {
		return nil, err
	}

	report := &ImportReport{}
	for i, m := range file.Modules {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		module, created, err := c.importModule(ctx, m)
		if err != nil {
			return report, fmt.Errorf("module #%d %q: %w", i+1, m.Title, err)
		}
		if created {
			report.ModulesCreated++
		} else {
			report.ModulesUpdated++
		}

		existing, err := c.Problems.ProblemRepo.FindByModule(module.ID, false)
		if err != nil {
			return report, util.Persistence(err)
		}
		bySlug := make(map[string]uint, len(existing))
		for _, p := range existing {
			bySlug[p.Slug] = p.ID
		}

		for j, p := range m.Problems {
			req := p.request(module.ID)
			key := slug.Make(p.Slug)
			if key == "" {
				key = slug.Make(p.Title)
			}

			if id, ok := bySlug[key]; ok {
				if _, err := c.Problems.Update(ctx, id, req); err != nil {
					return report, fmt.Errorf("module %q problem #%d %q: %w", module.Slug, j+1, p.Title, err)
				}
				report.ProblemsUpdated++
				continue
			}
			created, err := c.Problems.Create(ctx, req)
			if err != nil {
				return report, fmt.Errorf("module %q problem #%d %q: %w", module.Slug, j+1, p.Title, err)
			}
			bySlug[created.Slug] = created.ID
			report.ProblemsCreated++
		}
	}

	logger.Log.Info("catalog imported",
		zap.Int("modulesCreated", report.ModulesCreated),
		zap.Int("modulesUpdated", report.ModulesUpdated),
		zap.Int("problemsCreated", report.ProblemsCreated),
		zap.Int("problemsUpdated", report.ProblemsUpdated),
	)
	return report, nil
}

func (c *CatalogImporter) importModule(ctx context.Context, m CatalogModule) (*model.Module, bool, error) {
	prereqs := make([]uint, 0, len(m.Prerequisites))
	for _, ref := range m.Prerequisites {
		dep, err := c.Modules.ModuleRepo.FindBySlug(slug.Make(ref))
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, false, util.Wrap(util.ErrUnknownPrerequisite, fmt.Errorf("slug %q", ref))
			}
			return nil, false, util.Persistence(err)
		}
		prereqs = append(prereqs, dep.ID)
	}

	req := ModuleRequest{
		Title:         m.Title,
		Slug:          m.Slug,
		Description:   m.Description,
		Order:         m.Order,
		Prerequisites: prereqs,
		IsActive:      m.Active,
	}

	key := slug.Make(m.Slug)
	if key == "" {
		key = slug.Make(m.Title)
	}
	existing, err := c.Modules.ModuleRepo.FindBySlug(key)
	switch {
	case err == nil:
		module, err := c.Modules.Update(ctx, existing.ID, req)
		return module, false, err
	case errors.Is(err, gorm.ErrRecordNotFound):
		module, err := c.Modules.Create(ctx, req)
		return module, true, err
	default:
		return nil, false, util.Persistence(err)
	}
}

func (p CatalogProblem) request(moduleID uint) ProblemRequest {
	hints := make([]model.Hint, len(p.Hints))
	for i, h := range p.Hints {
		hints[i] = model.Hint{Text: h.Text, XPCost: h.XPCost}
	}
	cases := make([]model.TestCase, len(p.TestCases))
	for i, tc := range p.TestCases {
		cases[i] = model.TestCase{Input: tc.Input, ExpectedOutput: tc.Expected, IsHidden: tc.Hidden}
	}
	return ProblemRequest{
		ModuleID:    moduleID,
		Title:       p.Title,
		Slug:        p.Slug,
		Description: p.Description,
		Difficulty:  p.Difficulty,
		XPReward:    p.XPReward,
		Order:       p.Order,
		Hints:       hints,
		TestCases:   cases,
		IsActive:    p.Active,
	}
}
