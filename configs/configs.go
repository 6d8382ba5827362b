package configs

import "sync"

var (
	mu       sync.RWMutex
	headless = true
	binPath  string
	username string
)

// InitHeadless 设置是否以无头模式启动浏览器
func InitHeadless(h bool) {
	mu.Lock()
	defer mu.Unlock()
	headless = h
}

// IsHeadless 是否无头模式
func IsHeadless() bool {
	mu.RLock()
	defer mu.RUnlock()
	return headless
}

// SetBinPath 设置浏览器二进制文件路径
func SetBinPath(b string) {
	mu.Lock()
	defer mu.Unlock()
	binPath = b
}

func GetBinPath() string {
	mu.RLock()
	defer mu.RUnlock()
	return binPath
}

// SetUsername 设置默认账号 handle（不带 @），为空时从页面侧边栏解析
func SetUsername(u string) {
	mu.Lock()
	defer mu.Unlock()
	username = u
}

func GetUsername() string {
	mu.RLock()
	defer mu.RUnlock()
	return username
}
