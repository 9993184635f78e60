package service

import (
	"interview_pilot_backend/internal/model"
	"interview_pilot_backend/pkg/logger"
	"interview_pilot_backend/pkg/monitoring"
	"sync"
	"time"

	"go.uber.org/zap"
)

// InterviewClock 计时驱动：会话处于 running 期间，每秒调用一次
// SessionStore.Tick。阶段离开 running 即停表（而非暂停计数），
// 重新进入 running 时起新表。
type InterviewClock struct {
	store    *SessionStore
	hub      *SessionHub
	interval time.Duration

	// onExpire 到期自动提交后的回调（走评分管线），不得阻塞 tick 循环
	onExpire func(candidateID string, answer model.Answer)

	mu      sync.Mutex
	running map[string]chan struct{}
}

func NewInterviewClock(store *SessionStore, hub *SessionHub) *InterviewClock {
	return &InterviewClock{
		store:    store,
		hub:      hub,
		interval: time.Second,
		running:  make(map[string]chan struct{}),
	}
}

func (c *InterviewClock) SetExpireHandler(fn func(candidateID string, answer model.Answer)) {
	c.onExpire = fn
}

// Start 为候选人起一张表；已有表时为空操作
func (c *InterviewClock) Start(candidateID string) {
	c.mu.Lock()
	if _, ok := c.running[candidateID]; ok {
		c.mu.Unlock()
		return
	}
	stop := make(chan struct{})
	c.running[candidateID] = stop
	c.mu.Unlock()

	monitoring.ActiveSessions.Inc()
	go c.loop(candidateID, stop)
}

// Stop 停表。pause/complete/reset 时调用
func (c *InterviewClock) Stop(candidateID string) {
	c.mu.Lock()
	stop, ok := c.running[candidateID]
	if ok {
		delete(c.running, candidateID)
	}
	c.mu.Unlock()
	if ok {
		close(stop)
		monitoring.ActiveSessions.Dec()
	}
}

// stopOwn 循环自停时仅注销自己的表项。外部 Stop/Start 可能已经换上
// 新表，此时不得动新表
func (c *InterviewClock) stopOwn(candidateID string, stop <-chan struct{}) {
	c.mu.Lock()
	cur, ok := c.running[candidateID]
	own := ok && cur == stop
	if own {
		delete(c.running, candidateID)
	}
	c.mu.Unlock()
	if own {
		monitoring.ActiveSessions.Dec()
	}
}

func (c *InterviewClock) loop(candidateID string, stop <-chan struct{}) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			res := c.store.Tick(candidateID)
			if !res.Known || res.Stage != model.StageRunning {
				// 会话被移除或阶段已变，自行停表
				c.stopOwn(candidateID, stop)
				return
			}
			if c.hub != nil {
				c.hub.Publish(candidateID, SessionEvent{
					Type: EventTick,
					Data: map[string]interface{}{"remaining": res.Remaining},
				})
			}
			if res.Expired {
				monitoring.AutoSubmits.Inc()
				logger.Log.Info("question timer expired, answer auto-submitted",
					zap.String("candidateId", candidateID),
					zap.String("questionId", res.AutoAnswer.QuestionID))
				if c.hub != nil {
					c.hub.Publish(candidateID, SessionEvent{
						Type: EventAutoSubmit,
						Data: map[string]interface{}{"answerId": res.AutoAnswer.ID},
					})
				}
				if c.onExpire != nil {
					// 评分与出题异步进行，不阻塞下一次 tick
					go c.onExpire(candidateID, res.AutoAnswer)
				}
			}
		}
	}
}
