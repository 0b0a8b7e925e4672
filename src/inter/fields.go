package inter

// RecordFields 记录事件中已知的数值字段，按输出列顺序排列
// 缺失的字段在归一化时以 NaN 填充
var RecordFields = []string{
	"is_settling",
	"begin_time_ms",
	"end_time_ms",
	"pos_concentration_mean",
	"neg_concentration_mean",
	"pos_concentration_stddev",
	"neg_concentration_stddev",
	"a_cev_voltage_raw_mean",
	"a_cev_voltage_raw_stddev",
	"a_cev_voltage_mean",
	"a_cev_voltage_stddev",
	"a_cev_voltage_target_mean",
	"a_cev_voltage_target_stddev",
	"a_cev_voltage_control_mean",
	"a_cev_voltage_control_stddev",
	"a_flow_rate_raw_mean",
	"a_flow_rate_raw_stddev",
	"a_flow_rate_mean",
	"a_flow_rate_stddev",
	"a_flow_rate_target_mean",
	"a_flow_rate_target_stddev",
	"a_flow_rate_control_mean",
	"a_flow_rate_control_stddev",
	"a_flow_rate_tacho_mean",
	"a_flow_rate_tacho_stddev",
	"b_cev_voltage_raw_mean",
	"b_cev_voltage_raw_stddev",
	"b_cev_voltage_mean",
	"b_cev_voltage_stddev",
	"b_cev_voltage_target_mean",
	"b_cev_voltage_target_stddev",
	"b_cev_voltage_control_mean",
	"b_cev_voltage_control_stddev",
	"b_flow_rate_raw_mean",
	"b_flow_rate_raw_stddev",
	"b_flow_rate_mean",
	"b_flow_rate_stddev",
	"b_flow_rate_target_mean",
	"b_flow_rate_target_stddev",
	"b_flow_rate_control_mean",
	"b_flow_rate_tacho_mean",
	"b_flow_rate_tacho_stddev",
	"b_flow_rate_control_stddev",
	"temperature_mean",
	"temperature_stddev",
	"humidity_mean",
	"humidity_stddev",
	"pressure_mean",
	"pressure_stddev",
	"env_sensor_sample_counter",
	"env_sensor_error_counter",
	"a_cev_adc_sample_counter",
	"a_cev_voltage_correction_counter",
	"b_cev_adc_sample_counter",
	"b_cev_voltage_correction_counter",
	"a_electrometer_sample_counter",
	"a_electrometer_reset_counter",
	"a_electrometer_error_counter",
	"b_electrometer_sample_counter",
	"b_electrometer_reset_counter",
	"b_electrometer_error_counter",
	"a_electrometer_current_mean",
	"a_electrometer_current_stddev",
	"a_electrometer_current_raw_mean",
	"a_electrometer_voltage",
	"b_electrometer_current_mean",
	"b_electrometer_current_raw_mean",
	"b_electrometer_current_stddev",
	"b_electrometer_voltage",
	"a_flow_sensor_error_counter",
	"a_flow_sensor_sample_counter",
	"b_flow_sensor_error_counter",
	"b_flow_sensor_sample_counter",
	"a_concentration_mean",
	"b_concentration_mean",
}

// MonitoredCounters 需要监控变化的错误/复位计数器
// 仅在数值发生变化时产生一次诊断通知，避免重复上报
var MonitoredCounters = []string{
	"env_sensor_error_counter",
	"a_flow_sensor_error_counter",
	"b_flow_sensor_error_counter",
	"a_electrometer_reset_counter",
	"b_electrometer_reset_counter",
	"a_electrometer_error_counter",
	"b_electrometer_error_counter",
}
