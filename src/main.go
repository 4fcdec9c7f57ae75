package main

import (
	"CustomerAnalytics/src/config"
	"CustomerAnalytics/src/datapush"
	"CustomerAnalytics/src/datasource/email"
	"CustomerAnalytics/src/datasource/file"
	"CustomerAnalytics/src/processor"
	"CustomerAnalytics/src/storage"
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/go-gota/gota/dataframe"
	"github.com/robfig/cron"
)

// flags 命令行参数, 非空时覆盖配置文件
type flags struct {
	configDir    string
	configFile   string
	campaignFile string
	input        string
	outDir       string
	date         string
	schedule     string
	watch        bool
}

func parseFlags(args []string) (*flags, error) {
	f := &flags{}
	fs := flag.NewFlagSet("customer-analytics", flag.ContinueOnError)
	fs.StringVar(&f.configDir, "config", "./config", "配置文件目录")
	fs.StringVar(&f.configFile, "config-file", "config.json", "应用配置文件名(.json/.yaml)")
	fs.StringVar(&f.campaignFile, "campaigns", "campaigns.json", "营销活动配置文件名, 不存在时使用默认活动")
	fs.StringVar(&f.input, "input", "", "客户导出文件(.csv/.xlsx)")
	fs.StringVar(&f.outDir, "out", "", "输出目录")
	fs.StringVar(&f.date, "date", "", "分析日期(2006-01-02), 默认最后订单日期之后2天")
	fs.StringVar(&f.schedule, "schedule", "", "cron 表达式, 按计划重复分析")
	fs.BoolVar(&f.watch, "watch", false, "输入文件变化时重新分析")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	return f, nil
}

func (f *flags) apply(cfg *config.Config) {
	if f.input != "" {
		cfg.InputFile = f.input
	}
	if f.outDir != "" {
		cfg.OutputDir = f.outDir
	}
	if f.date != "" {
		cfg.Analysis.AnalysisDate = f.date
	}
	if f.schedule != "" {
		cfg.Schedule = f.schedule
	}
}

// resolveInput 相对路径的输入文件在数据目录下查找
func resolveInput(cfg *config.Config) string {
	if cfg.InputFile == "" || filepath.IsAbs(cfg.InputFile) {
		return cfg.InputFile
	}
	if _, err := os.Stat(cfg.InputFile); err == nil {
		return cfg.InputFile
	}
	return filepath.Join(cfg.DataDir, cfg.InputFile)
}

// app 一次或多次分析共享的状态
type app struct {
	cfg       *config.Config
	campaigns *config.CampaignConfig
	logger    *storage.Logger
	out       io.Writer

	dfw     *email.DataFrameWrapper
	mailbox email.MailService
	handler *email.ExportAttachmentHandler
	mailer  *datapush.Mailer

	mu sync.Mutex // 同一时间只跑一次分析
}

func newApp(cfg *config.Config, campaigns *config.CampaignConfig, logger *storage.Logger, out io.Writer) *app {
	a := &app{
		cfg:       cfg,
		campaigns: campaigns,
		logger:    logger,
		out:       out,
		dfw:       &email.DataFrameWrapper{},
	}
	if cfg.Email.Enabled {
		a.mailbox = email.NewEmailClient(cfg.Email.Server, cfg.Email.Username, cfg.Email.Password, logger)
		a.handler = email.NewExportAttachmentHandler(cfg.Email.TargetSubject, cfg.DataDir, logger)
	}
	if cfg.SendEmail.Enabled {
		a.mailer = datapush.NewMailer(cfg.SendEmail.Server, cfg.SendEmail.Username, cfg.SendEmail.Password,
			cfg.SendEmail.Subject, cfg.SendEmail.Recipients)
	}
	return a
}

func (a *app) fileOptions() file.Options {
	return file.Options{SheetName: a.cfg.SheetName, HeaderRow: a.cfg.HeaderRow, Encoding: a.cfg.Encoding}
}

// runFile 读取导出文件并分析
func (a *app) runFile(path string) error {
	df, err := file.ReadFile(path, a.fileOptions())
	if err != nil {
		return err
	}
	a.logger.Info(fmt.Sprintf("读取 %s: %d 行", path, df.Nrow()))
	return a.analyze(df)
}

// runMailbox 检查邮箱, 有新的导出附件时分析
func (a *app) runMailbox() error {
	newEmail, err := email.CheckAndProcessEmails(a.mailbox, a.cfg.Email.TargetSubject, a.logger)
	if err != nil {
		return fmt.Errorf("检查处理邮件失败: %w", err)
	}
	if newEmail == nil || a.handler.IsProcessed(newEmail.UID) {
		return nil
	}

	if _, err := a.handler.Save(newEmail); err != nil {
		a.logger.Error(fmt.Sprintf("处理邮件失败(UID:%d): %v", newEmail.UID, err))
	}

	changed, err := a.dfw.LoadAttachment(newEmail.ExportAttachment(), a.fileOptions())
	if err != nil {
		return err
	}
	if !changed {
		a.logger.Info("附件内容与上次相同, 跳过分析")
		return nil
	}
	a.logger.Info(fmt.Sprintf("读取附件 %s: %d 行", a.dfw.Source(), a.dfw.GetDF().Nrow()))
	return a.analyze(a.dfw.GetDF())
}

// scheduledRun 定时任务入口
func (a *app) scheduledRun() {
	t1 := time.Now()
	if err := a.logger.CheckRotate(a.cfg.LogMaxSize); err != nil {
		a.logger.Warning("日志轮转失败: " + err.Error())
	}

	var err error
	if a.mailbox != nil {
		err = a.runMailbox()
	} else {
		err = a.runFile(resolveInput(a.cfg))
	}
	if err != nil {
		a.logger.Error(err.Error())
		return
	}
	a.logger.Info(fmt.Sprintf("数据处理时间：%v", time.Since(t1)))
}

func (a *app) analyze(df dataframe.DataFrame) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	opts, err := processor.OptionsFromConfig(a.cfg, a.campaigns)
	if err != nil {
		return err
	}
	p, err := processor.NewDataProcessor(df, opts, a.logger)
	if err != nil {
		return err
	}
	res, err := p.Run()
	if err != nil {
		return err
	}

	datapush.PrintSummary(a.out, res)

	paths, err := datapush.WriteTargets(a.cfg.OutputDir, res.Targets)
	if err != nil {
		return err
	}
	for _, path := range paths {
		a.logger.Info("名单已保存到: " + path)
	}

	if a.cfg.ReportFile != "" {
		report := filepath.Join(a.cfg.OutputDir, a.cfg.ReportFile)
		if err := datapush.WriteReport(report, res); err != nil {
			return err
		}
		a.logger.Info("报表已保存到: " + report)
	}

	if a.mailer != nil {
		if err := a.mailer.Send(res, paths); err != nil {
			// 名单已落盘, 邮件失败不影响本次结果
			a.logger.Error("发送结果邮件失败: " + err.Error())
		} else {
			a.logger.Info("结果邮件已发送")
		}
	}

	metrics, err := p.CalculateMetrics()
	if err == nil {
		a.logger.Debug(fmt.Sprintf("分析完成: %v", metrics))
	}
	return nil
}

// watchReopen 收到 SIGHUP 时重新打开日志文件(配合外部 logrotate)
func watchReopen(ctx context.Context, logger *storage.Logger) {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	go func() {
		defer signal.Stop(hup)
		for {
			select {
			case <-hup:
				if err := logger.Reopen(); err != nil {
					log.Println("重新打开日志失败:", err)
				} else {
					logger.Info("日志文件已重新打开")
				}
			case <-ctx.Done():
				return
			}
		}
	}()
}

func main() {
	f, err := parseFlags(os.Args[1:])
	if err != nil {
		os.Exit(2)
	}

	cfg, campaigns, err := config.LoadConfig(f.configDir, f.configFile, f.campaignFile)
	if err != nil {
		log.Fatal("加载配置失败:", err)
	}
	f.apply(cfg)

	// 初始化日志系统
	logger, err := storage.NewLogger(cfg.LogName, storage.ParseLevel(cfg.LogLevel), os.Stdout)
	if err != nil {
		log.Fatal("Failed to initialize logger:", err)
	}
	defer logger.Close()

	a := newApp(cfg, campaigns, logger, os.Stdout)

	// 没有计划任务也不监控时只跑一次
	if cfg.Schedule == "" && !f.watch && !cfg.Email.Enabled {
		if err := a.runFile(resolveInput(cfg)); err != nil {
			logger.Error(err.Error())
			logger.Close()
			os.Exit(1)
		}
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	file.SetupSignalHandler(cancel)
	watchReopen(ctx, logger)

	cronSpec := cfg.Schedule
	if cronSpec == "" && cfg.Email.Enabled {
		// 使用配置中的检查间隔, 例如 "@every 5m0s"
		cronSpec = fmt.Sprintf("@every %s", time.Duration(cfg.Email.CheckInterval))
	}
	if cronSpec != "" {
		c := cron.New()
		if err := c.AddFunc(cronSpec, a.scheduledRun); err != nil {
			logger.Error("创建定时任务失败: " + err.Error())
			return
		}
		c.Start()
		defer c.Stop()
		logger.Info(fmt.Sprintf("定时分析已启动(%s)，按Ctrl+C退出", cronSpec))
	}

	if f.watch {
		input := resolveInput(cfg)
		monitor, err := file.NewFileMonitor(input, 2*time.Second)
		if err != nil {
			logger.Error("创建文件监控失败: " + err.Error())
			return
		}
		go func() {
			err := monitor.Watch(ctx, func(path string) {
				if err := a.runFile(path); err != nil {
					logger.Error(err.Error())
				}
			})
			if err != nil {
				logger.Error("文件监控错误: " + err.Error())
				cancel()
			}
		}()
		logger.Info("正在监控 " + input)
	}

	<-ctx.Done()
	logger.Info("shutting down...")
}
