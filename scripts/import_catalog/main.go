// 从 YAML 文件导入题库
//
// 按 slug 新增或更新模块与题目，可重复执行。文件格式见 configs/catalog.example.yaml。
//
// 用法: go run ./scripts/import_catalog -file configs/catalog.example.yaml

package main

import (
	"algo_learn_backend/internal/config"
	"algo_learn_backend/internal/repository"
	"algo_learn_backend/internal/service"
	"algo_learn_backend/pkg/database"
	"algo_learn_backend/pkg/logger"
	"context"
	"flag"
	"log"
	"os"
)

func main() {
	path := flag.String("file", "configs/catalog.example.yaml", "题库 YAML 文件")
	flag.Parse()

	cfg, err := config.LoadConfig("configs")
	if err != nil {
		log.Fatalf("无法读取配置文件: %v", err)
	}

	logger.InitLogger(cfg)

	db, err := database.InitDB(&cfg.Database, true)
	if err != nil {
		log.Fatalf("数据库连接失败: %v", err)
	}

	f, err := os.Open(*path)
	if err != nil {
		log.Fatalf("无法打开题库文件: %v", err)
	}
	defer f.Close()

	moduleRepo := repository.NewModuleRepository(db)
	problemRepo := repository.NewProblemRepository(db)
	submissionRepo := repository.NewSubmissionRepository(db)
	modules := service.NewModuleService(db, moduleRepo, problemRepo, repository.NewProgressRepository(db), submissionRepo, service.NewStorageService(cfg))
	problems := service.NewProblemService(db, problemRepo, moduleRepo, repository.NewHintUsageRepository(db), submissionRepo)

	report, err := service.NewCatalogImporter(modules, problems).Import(context.Background(), f)
	if err != nil {
		log.Fatalf("导入失败: %v (已完成 %+v)", err, report)
	}
	log.Printf("完成！新增模块 %d，更新模块 %d，新增题目 %d，更新题目 %d",
		report.ModulesCreated, report.ModulesUpdated, report.ProblemsCreated, report.ProblemsUpdated)
}
