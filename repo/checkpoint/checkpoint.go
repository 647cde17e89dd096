// Package checkpoint 实现图执行状态的存取点（compose.CheckPointStore），
// 供 Clarify 阶段的 interrupt-and-rerun 短路在收到澄清回答后恢复运行。
package checkpoint

import (
	"context"
	"os"
	"path/filepath"
	"sync"

	"github.com/cloudwego/eino/compose"
)

// memCheckpoint 是进程内存储点，用 checkPointID 索引，教师原始实现没有加锁，
// 这里补上互斥锁，因为服务端模式下多个请求可能并发读写不同的 checkPointID
type memCheckpoint struct {
	mu  sync.RWMutex
	buf map[string][]byte
}

func (c *memCheckpoint) Get(ctx context.Context, checkPointID string) ([]byte, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	data, ok := c.buf[checkPointID]
	return data, ok, nil
}

func (c *memCheckpoint) Set(ctx context.Context, checkPointID string, checkPoint []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.buf[checkPointID] = checkPoint
	return nil
}

// NewMemCheckPoint 创建一个进程内存储点，适用于控制台模式单进程运行
func NewMemCheckPoint() compose.CheckPointStore {
	return &memCheckpoint{buf: make(map[string][]byte)}
}

// fileCheckpoint 把每个 checkPointID 的快照写成 dir 下的一个文件，适用于
// 服务端模式下进程重启后仍需恢复中断的运行
type fileCheckpoint struct {
	mu  sync.Mutex
	dir string
}

// NewFileCheckPoint 创建一个以 dir 为根目录的文件存储点，dir 不存在时自动创建
func NewFileCheckPoint(dir string) (compose.CheckPointStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &fileCheckpoint{dir: dir}, nil
}

func (c *fileCheckpoint) path(checkPointID string) string {
	return filepath.Join(c.dir, checkPointID+".ckpt")
}

func (c *fileCheckpoint) Get(ctx context.Context, checkPointID string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	data, err := os.ReadFile(c.path(checkPointID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return data, true, nil
}

func (c *fileCheckpoint) Set(ctx context.Context, checkPointID string, checkPoint []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return os.WriteFile(c.path(checkPointID), checkPoint, 0o644)
}
