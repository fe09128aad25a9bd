package logger

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Log до вызова Init пишет в stderr с уровнем info, чтобы пакеты и тесты могли логировать без настройки.
var Log = logrus.New()

// Options описывает вывод логов.
type Options struct {
	Level string
	// JSON включает JSON формат (production), иначе текстовый.
	JSON bool
	// File: путь к файлу с ротацией. Пустой путь отключает запись в файл.
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// Init инициализирует структурированный логгер.
func Init(opts Options) {
	Log = logrus.New()

	lvl, err := logrus.ParseLevel(opts.Level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	Log.SetLevel(lvl)

	if opts.JSON {
		Log.SetFormatter(&logrus.JSONFormatter{})
	} else {
		Log.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
		})
	}

	Log.SetOutput(output(opts))
}

func output(opts Options) io.Writer {
	if opts.File == "" {
		return os.Stdout
	}

	rotator := &lumberjack.Logger{
		Filename:   opts.File,
		MaxSize:    opts.MaxSizeMB,
		MaxBackups: opts.MaxBackups,
		MaxAge:     opts.MaxAgeDays,
		Compress:   true,
	}
	return io.MultiWriter(os.Stdout, rotator)
}
