// Package device is plcstream's Modbus device client.
//
// A device is named by a connection descriptor of the form
// <protocol>:<transport>://<host>:<port>, e.g. modbus:tcp://127.0.0.1:502,
// and read through address specs of the form <class>:<start>[<count>]:
//
//	coil:0[3]                    three coils starting at 0
//	readholdingregisters:0[3]    three holding registers starting at 0
//	input:10                     one input register at 10
//
// ModbusClient owns exactly one connection and serialises requests on it.
// It is a component.Component: the application starts it, hands it to the
// pollers that need it, and stops it on shutdown.
package device
