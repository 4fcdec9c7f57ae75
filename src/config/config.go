package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// Config 应用程序配置
type Config struct {
	// Email 收取客户导出文件的IMAP邮箱
	Email struct {
		Enabled       bool     `json:"enabled" yaml:"enabled"`
		Server        string   `json:"server" yaml:"server"`                 // IMAP服务器地址(含端口)
		Username      string   `json:"username" yaml:"username"`             // 邮箱用户名
		Password      string   `json:"password" yaml:"password"`             // 邮箱密码/授权码
		TargetSubject string   `json:"target_subject" yaml:"target_subject"` // 需要匹配的邮件主题
		CheckInterval Duration `json:"check_interval" yaml:"check_interval"` // 检查新邮件的间隔时间
	} `json:"email" yaml:"email"`

	DataDir    string `json:"data_dir" yaml:"data_dir"`     // 导出文件存放目录
	InputFile  string `json:"input_file" yaml:"input_file"` // 客户导出文件(.csv/.xlsx)
	SheetName  string `json:"sheet_name" yaml:"sheet_name"`
	HeaderRow  int    `json:"header_row" yaml:"header_row"` // xlsx 标题行(从0开始)
	Encoding   string `json:"encoding" yaml:"encoding"`     // 输入文件编码, 默认utf-8
	OutputDir  string `json:"output_dir" yaml:"output_dir"`
	ReportFile string `json:"report_file" yaml:"report_file"` // 为空则不生成xlsx报表
	LogName    string `json:"log_name" yaml:"log_name"`
	LogLevel   string `json:"log_level" yaml:"log_level"`
	LogMaxSize string `json:"log_max_size" yaml:"log_max_size"`
	Schedule   string `json:"schedule" yaml:"schedule"` // cron 表达式, 例如 "@every 1h"

	Analysis Analysis `json:"analysis" yaml:"analysis"`

	SendEmail struct {
		Enabled    bool     `json:"enabled" yaml:"enabled"`
		Server     string   `json:"server" yaml:"server"` // SMTP服务器地址
		Username   string   `json:"username" yaml:"username"`
		Password   string   `json:"password" yaml:"password"`
		Subject    string   `json:"subject" yaml:"subject"`
		Recipients []string `json:"recipients" yaml:"recipients"`
	} `json:"send_email" yaml:"send_email"`
}

// Analysis 分析参数
type Analysis struct {
	AnalysisDate       string  `json:"analysis_date" yaml:"analysis_date"`                 // 固定分析日期(2006-01-02), 为空时按最后订单日期推算
	DaysAfterLastOrder int     `json:"days_after_last_order" yaml:"days_after_last_order"` // 默认2天
	SuppressOutliers   *bool   `json:"suppress_outliers" yaml:"suppress_outliers"`
	CLTVMonths         int     `json:"cltv_months" yaml:"cltv_months"`
	DiscountRate       float64 `json:"discount_rate" yaml:"discount_rate"`
	BGPenalizer        float64 `json:"bg_penalizer" yaml:"bg_penalizer"`
	GGPenalizer        float64 `json:"gg_penalizer" yaml:"gg_penalizer"`
	TopN               int     `json:"top_n" yaml:"top_n"`
}

// OutlierSuppression 未配置时默认开启
func (a Analysis) OutlierSuppression() bool {
	return a.SuppressOutliers == nil || *a.SuppressOutliers
}

// ParsedAnalysisDate 解析固定分析日期, 未配置时返回零值
func (a Analysis) ParsedAnalysisDate() (time.Time, error) {
	if a.AnalysisDate == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse("2006-01-02", a.AnalysisDate)
	if err != nil {
		return time.Time{}, fmt.Errorf("analysis_date 格式错误: %w", err)
	}
	return t, nil
}

// CampaignConfig 营销目标客户配置
type CampaignConfig struct {
	Campaigns []Campaign `json:"campaigns" yaml:"campaigns"`
}

// Campaign 一个目标客户名单: 细分 x 品类关键词
type Campaign struct {
	Name       string   `json:"name" yaml:"name"`
	Segments   []string `json:"segments" yaml:"segments"`
	Categories []string `json:"categories" yaml:"categories"`
	OutputFile string   `json:"output_file" yaml:"output_file"`
}

// DefaultCampaigns 新品牌(女性高价线)与折扣活动两份名单
func DefaultCampaigns() []Campaign {
	return []Campaign{
		{
			Name:       "new_brand",
			Segments:   []string{"champions", "loyal_customers"},
			Categories: []string{"KADIN"},
			OutputFile: "new_brand_target_customer_ids.csv",
		},
		{
			Name:       "discount",
			Segments:   []string{"cant_loose", "hibernating", "new_customers"},
			Categories: []string{"ERKEK", "COCUK"},
			OutputFile: "discount_target_customer_ids.csv",
		},
	}
}

var (
	once           sync.Once
	instance       *Config
	campaignConfig *CampaignConfig
)

// LoadConfig 只加载一次配置
func LoadConfig(folder, file, campaignFile string) (*Config, *CampaignConfig, error) {
	var err error
	once.Do(func() {
		instance, campaignConfig, err = loadConfigs(folder, file, campaignFile)
	})
	return instance, campaignConfig, err
}

func loadConfigs(folder, file, campaignFile string) (*Config, *CampaignConfig, error) {
	configFile := filepath.Join(folder, file)
	configData, err := readFile(configFile)
	if err != nil {
		return nil, nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	// 营销配置文件可以缺省
	var campaignData []byte
	campaignPath := ""
	if campaignFile != "" {
		campaignPath = filepath.Join(folder, campaignFile)
		campaignData, err = readFile(campaignPath)
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, nil, fmt.Errorf("读取营销配置文件失败: %w", err)
		}
	}

	cfgChan := make(chan *Config, 1)
	ccfgChan := make(chan *CampaignConfig, 1)
	errChan := make(chan error, 2)

	go parseConfig(configFile, configData, cfgChan, errChan)
	go parseCampaignConfig(campaignPath, campaignData, ccfgChan, errChan)

	cfg, ccfg, err := waitForResults(cfgChan, ccfgChan, errChan)
	if err != nil {
		return nil, nil, err
	}

	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, nil, err
	}
	if len(ccfg.Campaigns) == 0 {
		ccfg.Campaigns = DefaultCampaigns()
	}
	return cfg, ccfg, nil
}

func readFile(filePath string) ([]byte, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("无法读取文件 %s: %w", filePath, err)
	}
	return data, nil
}

// unmarshal 按扩展名选择 yaml 或 json
func unmarshal(path string, data []byte, v any) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return yaml.Unmarshal(data, v)
	default:
		return json.Unmarshal(data, v)
	}
}

func parseConfig(path string, data []byte, resultChan chan<- *Config, errChan chan<- error) {
	var cfg Config
	if err := unmarshal(path, data, &cfg); err != nil {
		errChan <- fmt.Errorf("解析Config失败: %w", err)
		return
	}
	resultChan <- &cfg
}

func parseCampaignConfig(path string, data []byte, resultChan chan<- *CampaignConfig, errChan chan<- error) {
	var ccfg CampaignConfig
	if len(data) == 0 {
		resultChan <- &ccfg
		return
	}
	if err := unmarshal(path, data, &ccfg); err != nil {
		errChan <- fmt.Errorf("解析CampaignConfig失败: %w", err)
		return
	}
	resultChan <- &ccfg
}

func waitForResults(
	cfgChan <-chan *Config,
	ccfgChan <-chan *CampaignConfig,
	errChan <-chan error,
) (*Config, *CampaignConfig, error) {
	var (
		cfg  *Config
		ccfg *CampaignConfig
		errs []error
	)

	for i := 0; i < 2; i++ {
		select {
		case c := <-cfgChan:
			cfg = c
		case cc := <-ccfgChan:
			ccfg = cc
		case err := <-errChan:
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		return nil, nil, combineErrors(errs)
	}

	if cfg == nil || ccfg == nil {
		return nil, nil, fmt.Errorf("部分配置未加载成功")
	}

	return cfg, ccfg, nil
}

func combineErrors(errs []error) error {
	if len(errs) == 0 {
		return nil
	}

	msg := "配置加载遇到多个错误:"
	for _, err := range errs {
		msg = fmt.Sprintf("%s\n- %v", msg, err)
	}
	return fmt.Errorf("%s", msg)
}

func (c *Config) applyDefaults() {
	if c.DataDir == "" {
		c.DataDir = "data"
	}
	if c.OutputDir == "" {
		c.OutputDir = "output"
	}
	if c.LogName == "" {
		c.LogName = "app.log"
	}
	if c.LogLevel == "" {
		c.LogLevel = "INFO"
	}
	if c.Encoding == "" {
		c.Encoding = "utf-8"
	}
	if c.Email.CheckInterval == 0 {
		c.Email.CheckInterval = Duration(5 * time.Minute)
	}
	a := &c.Analysis
	if a.DaysAfterLastOrder == 0 {
		a.DaysAfterLastOrder = 2
	}
	if a.CLTVMonths == 0 {
		a.CLTVMonths = 6
	}
	if a.DiscountRate == 0 {
		a.DiscountRate = 0.01
	}
	if a.BGPenalizer == 0 {
		a.BGPenalizer = 0.001
	}
	if a.GGPenalizer == 0 {
		a.GGPenalizer = 0.01
	}
	if a.TopN == 0 {
		a.TopN = 20
	}
}

func (c *Config) validate() error {
	if _, err := c.Analysis.ParsedAnalysisDate(); err != nil {
		return err
	}
	if c.Analysis.CLTVMonths < 0 || c.Analysis.DiscountRate < 0 {
		return fmt.Errorf("cltv_months 与 discount_rate 不能为负数")
	}
	if c.Email.Enabled && (c.Email.Server == "" || c.Email.Username == "") {
		return fmt.Errorf("email 已启用但缺少 server/username")
	}
	if c.SendEmail.Enabled && len(c.SendEmail.Recipients) == 0 {
		return fmt.Errorf("send_email 已启用但没有收件人")
	}
	return nil
}

// Duration 是time.Duration的自定义包装类型
// 用于支持JSON/YAML中的 "5m" 这类写法
type Duration time.Duration

// UnmarshalJSON 实现json.Unmarshaler接口
func (d *Duration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	dur, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(dur)
	return nil
}

// MarshalJSON 实现json.Marshaler接口
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

// UnmarshalYAML 实现yaml.Unmarshaler接口
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	dur, err := time.ParseDuration(value.Value)
	if err != nil {
		return err
	}
	*d = Duration(dur)
	return nil
}
