package server

import (
	"context"
	"sync"
	"time"
)

// Run 单一调度循环：同一时刻推进所有房间（处理命令 -> 更新世界 -> 广播），随后回收空房间
func (m *RoomManager) Run(ctx context.Context) {
	ticker := time.NewTicker(m.cfg.TickInterval)
	defer ticker.Stop()
	Log.Infof("scheduler started: tick=%s broadcast=%s workers=%d", m.cfg.TickInterval, m.cfg.BroadcastInterval, m.cfg.TickWorkers)
	for {
		select {
		case <-ctx.Done():
			Log.Info("scheduler stopped")
			return
		case now := <-ticker.C:
			m.TickAll(now)
		}
	}
}

// TickAll 房间之间不共享状态，可按 TickWorkers 并行步进
func (m *RoomManager) TickAll(now time.Time) {
	rooms := m.snapshotRooms()
	workers := min(m.cfg.TickWorkers, len(rooms))
	if workers <= 1 {
		for _, r := range rooms {
			r.Step(now)
		}
	} else {
		stepParallel(rooms, now, workers)
	}
	m.disposeIdle()
}

func stepParallel(rooms []*Room, now time.Time, workers int) {
	jobs := make(chan *Room)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for r := range jobs {
				r.Step(now)
			}
		}()
	}
	for _, r := range rooms {
		jobs <- r
	}
	close(jobs)
	wg.Wait()
}
