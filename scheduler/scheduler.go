package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"ecommerce_recommend/config"
	"ecommerce_recommend/logger"
	"ecommerce_recommend/services"
)

// 验证小时和分钟是否有效
func validateHourMinute(cfg *config.Config, hour, minute int) (int, int) {
	defaultHour := cfg.Scheduler.DefaultHour
	defaultMinute := cfg.Scheduler.DefaultMinute

	if hour < 0 || hour > 23 {
		logger.Warn("无效的小时值", "hour", hour, "default", defaultHour)
		hour = defaultHour
	}
	if minute < 0 || minute > 59 {
		logger.Warn("无效的分钟值", "minute", minute, "default", defaultMinute)
		minute = defaultMinute
	}
	return hour, minute
}

// 计算下一个指定时间点
func getNextTimePoint(now time.Time, hour, minute int) time.Time {
	next := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, now.Location())
	if next.Before(now) {
		next = next.Add(24 * time.Hour)
	}
	return next
}

// 任务类型
type TaskType int

const (
	TaskRegenerate TaskType = iota // 推荐预热：失效缓存并为所有买家重新生成推荐
)

// 任务状态
type TaskStatus struct {
	LastRun     time.Time
	NextRun     time.Time
	IsRunning   bool
	Description string
}

// 任务调度器
type Scheduler struct {
	cfg         *config.Config
	svc         *services.RecommendationService
	concurrency int
	tasks       map[TaskType]*TaskStatus
	mutex       sync.Mutex
}

// 创建新的调度器
func NewScheduler(cfg *config.Config, svc *services.RecommendationService) *Scheduler {
	concurrency := cfg.Cron.Concurrency
	if concurrency <= 0 {
		concurrency = 10
	}

	return &Scheduler{
		cfg:         cfg,
		svc:         svc,
		concurrency: concurrency,
		tasks:       make(map[TaskType]*TaskStatus),
	}
}

// 启动调度器。Cron.Enabled为false时不做任何事：
// 最小部署下推荐完全由请求触发，预热只是可选优化。
func Start(cfg *config.Config, svc *services.RecommendationService) {
	if !cfg.Cron.Enabled && !cfg.Debug.Enabled {
		logger.Info("定时预热任务未启用")
		return
	}

	scheduler := NewScheduler(cfg, svc)

	// 初始化任务
	scheduler.initTasks()

	// 启动主循环
	go scheduler.run()

	checkInterval := cfg.Scheduler.CheckIntervalSec
	if checkInterval <= 0 {
		checkInterval = 60 // 默认值
	}
	logger.Info("调度器已启动", "check_interval_sec", checkInterval)
}

// 初始化任务
func (s *Scheduler) initTasks() {
	now := time.Now()

	// 推荐预热任务 - 根据debug模式决定运行频率
	if s.cfg.Debug.Enabled {
		// Debug模式：按配置的秒数间隔重新生成一次
		freqSeconds := s.cfg.Debug.RegenerateFreq
		if freqSeconds <= 0 {
			freqSeconds = 1800
		}
		interval := time.Duration(freqSeconds) * time.Second

		s.tasks[TaskRegenerate] = &TaskStatus{
			LastRun:     now.Add(-interval),
			NextRun:     now.Add(interval),
			Description: fmt.Sprintf("推荐预热 (Debug模式: 每%d秒)", freqSeconds),
		}
		logger.Info("Debug模式已启用", "frequency_seconds", freqSeconds)
	} else {
		// 正常模式：每天在指定时间点重新生成所有买家的推荐
		hour, minute := validateHourMinute(s.cfg, s.cfg.Cron.RegenerateHour, s.cfg.Cron.RegenerateMin)
		nextRun := getNextTimePoint(now, hour, minute)

		s.tasks[TaskRegenerate] = &TaskStatus{
			LastRun:     nextRun.Add(-24 * time.Hour),
			NextRun:     nextRun,
			Description: fmt.Sprintf("推荐预热 (%02d:%02d)", hour, minute),
		}
		logger.Info("正常模式", "schedule_time", fmt.Sprintf("%02d:%02d", hour, minute))
	}

	logger.Info("定时任务初始化完成", "task_count", len(s.tasks))
}

// 主循环
func (s *Scheduler) run() {
	checkInterval := s.cfg.Scheduler.CheckIntervalSec
	if checkInterval <= 0 {
		checkInterval = 60 // 默认值
	}
	ticker := time.NewTicker(time.Duration(checkInterval) * time.Second)
	defer ticker.Stop()

	for now := range ticker.C {
		s.checkTasks(now)
	}
}

// 检查任务
func (s *Scheduler) checkTasks(now time.Time) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	for taskType, status := range s.tasks {
		// 如果任务正在运行，跳过
		if status.IsRunning {
			continue
		}

		// 如果任务的NextRun为零值，跳过（表示不需要定期调度）
		if status.NextRun.IsZero() {
			continue
		}

		// 如果到达或超过下次运行时间，执行任务
		if now.After(status.NextRun) || now.Equal(status.NextRun) {
			status.IsRunning = true
			go s.runTask(taskType, now)
		}
	}
}

// 运行任务
func (s *Scheduler) runTask(taskType TaskType, now time.Time) {
	defer func() {
		s.mutex.Lock()
		defer s.mutex.Unlock()

		status := s.tasks[taskType]
		status.IsRunning = false
		status.LastRun = now

		// 更新下次运行时间
		switch taskType {
		case TaskRegenerate:
			if s.cfg.Debug.Enabled {
				// Debug模式：按配置的秒数间隔
				freqSeconds := s.cfg.Debug.RegenerateFreq
				if freqSeconds <= 0 {
					freqSeconds = 1800
				}
				status.NextRun = now.Add(time.Duration(freqSeconds) * time.Second)
			} else {
				// 正常模式：获取下一个每日时间点
				hour, minute := validateHourMinute(s.cfg, s.cfg.Cron.RegenerateHour, s.cfg.Cron.RegenerateMin)
				status.NextRun = getNextTimePoint(now, hour, minute)
			}
		}

		logger.Info("任务执行完成", "task", status.Description, "next_run", status.NextRun.Format("2006-01-02 15:04:05"))
	}()

	logger.Info("开始执行任务", "task", func() string {
		s.mutex.Lock()
		defer s.mutex.Unlock()
		if status, ok := s.tasks[taskType]; ok {
			return status.Description
		}
		return "Unknown Task"
	}())

	switch taskType {
	case TaskRegenerate:
		// 为所有有订单的用户失效缓存并重新生成推荐，让高峰流量命中热缓存
		if err := s.svc.RegenerateForAllBuyers(context.Background(), s.concurrency); err != nil {
			logger.Error("推荐预热任务执行失败", "error", err)
		}
	}
}
