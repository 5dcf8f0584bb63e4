package led

import (
	"os"
	"strings"

	"github.com/smazurov/audiocard/internal/logging"
)

const deviceTreeModelPath = "/proc/device-tree/model"

// Activity is the logical name of the LED the manager drives.
const Activity = "activity"

// boardLEDs maps a device-tree model substring to the sysfs LED that
// serves as the audio activity indicator.
var boardLEDs = []struct {
	model string
	led   string
}{
	{"Shuttle", "shuttle:green:activity"},
	{"NVIDIA Tegra", "nvidia:green:activity"},
	{"NanoPC-T6", "usr_led"},
	{"Orange Pi", "green_led"},
	{"Raspberry Pi", "ACT"},
}

// New picks a controller for the running board. A non-empty override names
// the sysfs LED directly and skips detection.
func New(logger logging.Logger, override string) Controller {
	if override != "" {
		logger.Info("Using configured activity LED", "led", override)
		return newSysfs(sysfsLEDPath, map[string]string{Activity: override})
	}

	model := detectBoard()
	for _, b := range boardLEDs {
		if strings.Contains(model, b.model) {
			logger.Info("Detected board for LED control", "board_model", model, "led", b.led)
			return newSysfs(sysfsLEDPath, map[string]string{Activity: b.led})
		}
	}
	logger.Info("No activity LED known for board, using no-op controller", "board_model", model)
	return newNoop(logger)
}

// detectBoard reads the device-tree model, which is NUL terminated.
func detectBoard() string {
	data, err := os.ReadFile(deviceTreeModelPath)
	if err != nil {
		return "unknown"
	}
	return strings.TrimRight(string(data), "\x00")
}
