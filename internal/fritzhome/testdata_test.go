package fritzhome

const deviceListXML = `<?xml version="1.0" encoding="utf-8"?>
<devicelist version="1" fwversion="7.57">
<device identifier="11960 0071472" id="16" functionbitmask="320" fwversion="05.16" manufacturer="AVM" productname="FRITZ!DECT 301">
<present>1</present><txbusy>0</txbusy><name>Heizung Bad</name>
<battery>80</battery><batterylow>0</batterylow>
<temperature><celsius>215</celsius><offset>-5</offset></temperature>
<hkr><tist>43</tist><tsoll>253</tsoll><absenk>32</absenk><komfort>40</komfort><lock>0</lock><devicelock>0</devicelock><errorcode>0</errorcode><windowopenactiv>0</windowopenactiv><windowopenactiveendtime>0</windowopenactiveendtime><boostactive>1</boostactive><boostactiveendtime>1700000000</boostactiveendtime><batterylow>0</batterylow><battery>80</battery><summeractive>0</summeractive><holidayactive></holidayactive></hkr>
</device>
<device identifier="08761 0000434" id="17" functionbitmask="35712" fwversion="04.25" manufacturer="AVM" productname="FRITZ!DECT 200">
<present>1</present><txbusy>0</txbusy><name>Steckdose Flur</name>
<switch><state>1</state><mode>manuell</mode><lock>0</lock><devicelock>0</devicelock></switch>
<temperature><celsius>220</celsius><offset>0</offset></temperature>
</device>
</devicelist>`

const singleDeviceListXML = `<?xml version="1.0" encoding="utf-8"?>
<devicelist version="1">
<device identifier="08761 0000434" id="17" functionbitmask="35712" fwversion="04.25" manufacturer="AVM" productname="FRITZ!DECT 200">
<present>0</present><name>Steckdose Flur</name>
<temperature><celsius></celsius><offset></offset></temperature>
</device>
</devicelist>`
