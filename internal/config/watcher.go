package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/nacos-group/nacos-sdk-go/v2/clients"
	"github.com/nacos-group/nacos-sdk-go/v2/vo"
)

// StartWatch 监听 Nacos 配置变化，变更时回调 onChange(old, new)。
// 未配置 Nacos（本地文件 / etcd 启动）时直接返回。
func StartWatch(_ context.Context, onChange func(oldCfg, newCfg *Config)) error {
	if strings.TrimSpace(os.Getenv("NACOS_SERVER_ADDR")) == "" {
		fmt.Println("[Config] nacos not configured, skip watch")
		return nil
	}

	param, dataID, group, err := nacosParams()
	if err != nil {
		return err
	}
	configClient, err := clients.NewConfigClient(param)
	if err != nil {
		return fmt.Errorf("failed to create nacos config client for watch: %w", err)
	}

	err = configClient.ListenConfig(vo.ConfigParam{
		DataId: dataID,
		Group:  group,
		OnChange: func(namespace, group, dataId, data string) {
			newCfg, parseErr := parse(filepath.Ext(dataId), []byte(data))
			if parseErr != nil {
				fmt.Printf("[Config] parse nacos change failed: dataId=%s, error=%v\n", dataId, parseErr)
				return
			}
			newCfg.ApplyDefaults()

			oldCfg := GetCurrent()
			SetCurrent(newCfg)
			if onChange != nil {
				onChange(oldCfg, newCfg)
			}
			fmt.Printf("[Config] nacos config updated: namespace=%s, group=%s, dataId=%s\n", namespace, group, dataId)
		},
	})
	if err != nil {
		return fmt.Errorf("failed to listen nacos config: %w", err)
	}
	return nil
}
