package homekit

import (
	"github.com/brutella/hap/accessory"
	"github.com/brutella/hap/service"
)

// Accessory exposes one temperature and one humidity characteristic.
type Accessory struct {
	*accessory.A

	TempSensor     *service.TemperatureSensor
	HumiditySensor *service.HumiditySensor
}

func NewAccessory(info accessory.Info) *Accessory {
	a := &Accessory{}
	a.A = accessory.New(info, accessory.TypeSensor)

	a.TempSensor = service.NewTemperatureSensor()
	// The HAP default floor is 0°C, too high for an outdoor sensor.
	a.TempSensor.CurrentTemperature.SetMinValue(-40)
	a.TempSensor.CurrentTemperature.SetMaxValue(80)
	a.TempSensor.CurrentTemperature.SetStepValue(0.1)
	a.AddS(a.TempSensor.S)

	a.HumiditySensor = service.NewHumiditySensor()
	a.HumiditySensor.CurrentRelativeHumidity.SetStepValue(1)
	a.AddS(a.HumiditySensor.S)

	return a
}

func (a *Accessory) SetTemperature(celsius float64) {
	a.TempSensor.CurrentTemperature.SetValue(celsius)
}

func (a *Accessory) SetHumidity(pct float64) {
	a.HumiditySensor.CurrentRelativeHumidity.SetValue(pct)
}
