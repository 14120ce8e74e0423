/*

Bsky post-processes the posterior of a BEAST Bayesian skyline
analysis. It pairs every tree of the .trees file with the matching
row of the .log file, reconstructs the skyline step function of the
sample and then either resamples it into time windows or tests it for
a change in relative genetic diversity.

Resample every sample into 100 windows between 1950 and 2015:

	bsky windows -s 2015.54 --d1 1950 --d2 2015 -o skyline.txt run.log run.trees

Proportion of samples with the population doubling between 1980 and 1990:

	bsky support -s 2015.54 -p 100 --start 1980 --end 1990 run.log run.trees

Dates of the first doubling:

	bsky increase -s 2015.54 -p 100 -o increase.txt run.log run.trees

To see all the options run:

	bsky --help

*/
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"runtime"
	"runtime/pprof"

	"gopkg.in/alecthomas/kingpin.v2"

	"github.com/op/go-logging"
)

// These three variables are set during the compilation.
var githash = ""
var gitbranch = ""
var buildstamp = ""
var version = fmt.Sprintf("branch: %s, revision: %s, build time: %s", gitbranch, githash, buildstamp)

// Logger settings.
var log = logging.MustGetLogger("bsky")
var formatter = logging.MustStringFormatter(`%{message}`)

// addInputs adds the log and trees arguments to a command.
func addInputs(cmd *kingpin.CmdClause) (logF, treesF *string) {
	logF = cmd.Arg("log", "log file from BEAST").Required().ExistingFile()
	treesF = cmd.Arg("trees", "trees file from BEAST").Required().ExistingFile()
	return
}

// command-line options
var (
	// application
	app = kingpin.New("bsky", "Bayesian skyline post-processing of BEAST output").Version(version)

	// shared parameters
	latest       = app.Flag("latest", "date of the latest sample as decimal, e.g. 2015.54").Short('s').Required().Float64()
	beastVersion = app.Flag("beast", "BEAST version used (1 or 2)").Short('b').Default("2").Enum("1", "2")
	burnin       = app.Flag("burnin", "number of samples to discard").Default("0").Int()

	// windowed skyline
	windowsCmd               = app.Command("windows", "resample the skyline of every sample into equal-width windows")
	windowsLog, windowsTrees = addInputs(windowsCmd)
	windowsD1                = windowsCmd.Flag("d1", "the earliest date to be examined").Required().Float64()
	windowsD2                = windowsCmd.Flag("d2", "the latest date to be examined").Required().Float64()
	windowsN                 = windowsCmd.Flag("windows", "the number of windows to be examined").Short('a').Default("100").Int()
	windowsOut               = windowsCmd.Flag("out", "output file (standard output by default)").Short('o').String()
	windowsPlot              = windowsCmd.Flag("plot", "draw the median skyline and its 95% interval to a file (png, svg or pdf)").String()

	// change support
	supportCmd               = app.Command("support", "proportion of samples with a population change in a window")
	supportLog, supportTrees = addInputs(supportCmd)
	supportPercent           = supportCmd.Flag("percent", "minimum percentage change relative to baseline").Short('p').Default("100").Float64()
	supportStart             = supportCmd.Flag("start", "start of the window of interest").Required().Float64()
	supportEnd               = supportCmd.Flag("end", "end of the window of interest").Required().Float64()
	supportDecrease          = supportCmd.Flag("decrease", "look for a population decrease instead of an increase").Bool()

	// first increase
	increaseCmd                = app.Command("increase", "dates of the first increase in relative genetic diversity")
	increaseLog, increaseTrees = addInputs(increaseCmd)
	increasePercent            = increaseCmd.Flag("percent", "minimum percentage increase above baseline").Short('p').Default("100").Float64()
	increaseFrom               = increaseCmd.Flag("from", "baseline segment: present (most recent) or root (oldest)").Default("present").Enum("present", "root")
	increaseOut                = increaseCmd.Flag("out", "output file (standard output by default)").Short('o').String()

	// technical
	report            = app.Flag("report", "report every N trees").Short('n').Default("1000").Int()
	nThreads          = app.Flag("nt", "number of threads to use").Int()
	checkpointF       = app.Flag("checkpoint", "checkpoint database file, resumes an interrupted run").String()
	checkpointSeconds = app.Flag("checkpoint-seconds", "save checkpoint every N seconds").Default("60").Float64()
	cpuProfile        = app.Flag("cpuprofile", "write cpu profile to file").String()

	// output
	outLogF  = app.Flag("log", "write log to a file").String()
	logLevel = app.Flag("loglevel", "set loglevel "+
		"('critical', 'error', 'warning', 'notice', 'info', 'debug')").
		Default("notice").
		Enum("critical", "error", "warning", "notice", "info", "debug")
	jsonF = app.Flag("json", "write json output to a file").String()
)

func main() {
	command := kingpin.MustParse(app.Parse(os.Args[1:]))

	// logging
	logging.SetFormatter(formatter)

	var backend *logging.LogBackend
	if *outLogF != "" {
		f, err := os.OpenFile(*outLogF, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0666)
		if err != nil {
			log.Fatal("Error creating log file:", err)
		}
		defer f.Close()
		backend = logging.NewLogBackend(f, "", 0)
	} else {
		backend = logging.NewLogBackend(os.Stderr, "", 0)
	}
	logging.SetBackend(backend)

	level, err := logging.LogLevel(*logLevel)
	if err != nil {
		log.Fatal(err)
	}
	logging.SetLevel(level, "bsky")
	logging.SetLevel(level, "beast")
	logging.SetLevel(level, "checkpoint")

	// print revision
	log.Info(version)

	// print commandline
	log.Info("Command line:", os.Args)

	cfg, err := newConfig(command)
	if err != nil {
		log.Fatal(err)
	}

	runtime.GOMAXPROCS(*nThreads)
	cfg.NThreads = runtime.GOMAXPROCS(0)
	log.Infof("Using threads: %d.", cfg.NThreads)

	if *cpuProfile != "" {
		f, err := os.Create(*cpuProfile)
		if err != nil {
			log.Fatal(err)
		}
		pprof.StartCPUProfile(f)
		defer pprof.StopCPUProfile()
	}

	summary, err := execute(cfg, os.Stdout)
	if err != nil {
		log.Fatal(err)
	}
	summary.Version = version
	summary.CommandLine = os.Args

	// output summary in json format
	if *jsonF != "" {
		j, err := json.Marshal(summary)
		if err != nil {
			log.Error(err)
		} else {
			log.Debug(string(j))
			f, err := os.Create(*jsonF)
			if err != nil {
				log.Error("Error creating json output file:", err)
			} else {
				f.Write(j)
				f.Close()
			}
		}
	}
}
