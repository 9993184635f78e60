// 手动导出面试归档脚本
//
// 将归档的面试结果（总分、等级、题目与作答明细）连同候选人资料
// 导出为 JSON，便于离线分析或迁移。
//
// 用法: go run scripts/export_archives.go > archives.json

package main

import (
	"encoding/json"
	"interview_pilot_backend/internal/config"
	"interview_pilot_backend/internal/model"
	"interview_pilot_backend/internal/repository"
	"interview_pilot_backend/pkg/database"
	"interview_pilot_backend/pkg/logger"
	"log"
	"os"
)

type exportRow struct {
	Candidate model.Candidate        `json:"candidate"`
	Archive   model.InterviewArchive `json:"archive"`
}

func main() {
	cfg, err := config.LoadConfig("configs")
	if err != nil {
		log.Fatalf("无法读取配置文件: %v", err)
	}

	logger.InitLogger(cfg)

	db, err := database.InitDB(&cfg.Database)
	if err != nil {
		log.Fatalf("数据库连接失败: %v", err)
	}

	candidates := repository.NewCandidateRepository(db)
	interviews := repository.NewInterviewRepository(db)

	all, _, err := candidates.List("", 1, 10000)
	if err != nil {
		log.Fatalf("读取候选人失败: %v", err)
	}

	ids := make([]string, 0, len(all))
	byID := make(map[string]model.Candidate, len(all))
	for _, c := range all {
		ids = append(ids, c.ID)
		byID[c.ID] = c
	}

	archives, err := interviews.ListByCandidates(ids)
	if err != nil {
		log.Fatalf("读取归档失败: %v", err)
	}

	rows := make([]exportRow, 0, len(archives))
	for _, a := range archives {
		rows = append(rows, exportRow{Candidate: byID[a.CandidateID], Archive: a})
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(rows); err != nil {
		log.Fatalf("导出失败: %v", err)
	}

	log.Printf("导出完成，共 %d 条归档", len(rows))
}
