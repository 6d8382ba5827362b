package cookies

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

type Cookier interface {
	LoadCookies() ([]byte, error)
	SaveCookies(data []byte) error
}

type localCookie struct {
	path string
}

func NewLoadCookie(path string) Cookier {
	if path == "" {
		panic("path is required")
	}

	return &localCookie{
		path: path,
	}
}

// LoadCookies 从文件中加载 cookies。
func (c *localCookie) LoadCookies() ([]byte, error) {
	data, err := os.ReadFile(c.path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read cookies from tmp file")
	}

	return data, nil
}

// SaveCookies 保存 cookies 到文件中，目录不存在时自动创建。
func (c *localCookie) SaveCookies(data []byte) error {
	if dir := filepath.Dir(c.path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.Wrap(err, "failed to create cookies dir")
		}
	}
	return errors.Wrap(os.WriteFile(c.path, data, 0o644), "failed to write cookies")
}

// GetCookiesFilePath 获取 cookies 文件路径。
// 优先使用环境变量 COOKIES_PATH，否则使用临时目录下的 cookies.json
func GetCookiesFilePath() string {
	if p := os.Getenv("COOKIES_PATH"); p != "" {
		return p
	}
	return filepath.Join(os.TempDir(), "cookies.json")
}

// GetInstanceCookiesFilePath 获取多实例场景下指定实例的 cookies 文件路径，
// 例如 cookies.json -> cookies_instance1.json
func GetInstanceCookiesFilePath(instanceID string) string {
	basePath := GetCookiesFilePath()
	dir := filepath.Dir(basePath)
	ext := filepath.Ext(basePath)
	name := strings.TrimSuffix(filepath.Base(basePath), ext)
	if name == "" {
		name = "cookies"
	}
	return filepath.Join(dir, fmt.Sprintf("%s_%s%s", name, instanceID, ext))
}
