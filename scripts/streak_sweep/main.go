// 手动触发断签修复脚本
//
// 该功能已集成到主应用的后台定时任务中（每天 sweep_hour 之后执行一次）。
// 此脚本仅用于手动补跑，例如服务停机跨过了修复时刻。
//
// 用法: go run ./scripts/streak_sweep

package main

import (
	"algo_learn_backend/internal/config"
	"algo_learn_backend/internal/repository"
	"algo_learn_backend/internal/service"
	"algo_learn_backend/pkg/database"
	"algo_learn_backend/pkg/events"
	"algo_learn_backend/pkg/lock"
	"algo_learn_backend/pkg/logger"
	"context"
	"log"
)

func main() {
	cfg, err := config.LoadConfig("configs")
	if err != nil {
		log.Fatalf("无法读取配置文件: %v", err)
	}

	logger.InitLogger(cfg)

	db, err := database.InitDB(&cfg.Database, false)
	if err != nil {
		log.Fatalf("数据库连接失败: %v", err)
	}

	// 与在线实例共用 Redis 日锁，避免同一天重复执行
	var locker lock.Locker = lock.NewMemoryLocker()
	if rdb, err := database.InitRedis(&cfg.Redis); err == nil {
		locker = lock.NewRedisLocker(rdb)
		defer rdb.Close()
	} else {
		log.Printf("Redis 不可用，使用进程内锁: %v", err)
	}

	publisher, err := events.NewPublisher(cfg.RabbitMQ.URL, cfg.RabbitMQ.Exchange)
	if err != nil {
		log.Printf("事件发布不可用: %v", err)
		publisher = events.NopPublisher{}
	}
	defer publisher.Close()

	streakRepo := repository.NewStreakRepository(db)
	progression := service.NewProgressionService(
		db,
		repository.NewUserRepository(db),
		repository.NewProgressRepository(db),
		repository.NewProblemRepository(db),
		repository.NewSubmissionRepository(db),
		repository.NewHintUsageRepository(db),
		streakRepo,
		repository.NewAchievementRepository(db),
		nil,
		publisher,
		cfg.Progression,
	)
	streaks := service.NewStreakService(streakRepo, progression, locker, publisher)

	log.Println("手动触发断签修复任务...")
	report, err := streaks.RepairStreaks(context.Background())
	if err != nil {
		log.Fatalf("断签修复失败: %v", err)
	}
	if report.Skipped {
		log.Printf("%s 的修复已由其他实例完成", report.Date)
		return
	}
	log.Printf("完成！日期 %s，扫描 %d，修复 %d，失败 %d", report.Date, report.Scanned, report.Repaired, report.Failed)
}
