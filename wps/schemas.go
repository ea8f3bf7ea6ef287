package wps

import "tempus/xmlutil"

const optionValueTypes = `
  <xs:complexType name="OptionValue">
    <xs:sequence>
      <xs:choice>
        <xs:element name="bool_value"><xs:complexType><xs:attribute name="value" type="xs:boolean" use="required"/></xs:complexType></xs:element>
        <xs:element name="int_value"><xs:complexType><xs:attribute name="value" type="xs:long" use="required"/></xs:complexType></xs:element>
        <xs:element name="float_value"><xs:complexType><xs:attribute name="value" type="xs:double" use="required"/></xs:complexType></xs:element>
        <xs:element name="string_value"><xs:complexType><xs:attribute name="value" type="xs:string" use="required"/></xs:complexType></xs:element>
      </xs:choice>
    </xs:sequence>
  </xs:complexType>
`

var (
	dbOptionsSchema = xmlutil.MustParseSchema(`<xs:element name="db_options" type="xs:string"/>`)

	stateSchema = xmlutil.MustParseSchema(`<xs:element name="state" type="xs:int"/>`)

	pluginSchema = xmlutil.MustParseSchema(`
  <xs:element name="plugin">
    <xs:complexType>
      <xs:attribute name="name" type="xs:string" use="required"/>
    </xs:complexType>
  </xs:element>
`)

	optionsSchema = xmlutil.MustParseSchema(`
  <xs:complexType name="Option">
    <xs:sequence>
      <xs:choice>
        <xs:element name="bool_value"><xs:complexType><xs:attribute name="value" type="xs:boolean" use="required"/></xs:complexType></xs:element>
        <xs:element name="int_value"><xs:complexType><xs:attribute name="value" type="xs:long" use="required"/></xs:complexType></xs:element>
        <xs:element name="float_value"><xs:complexType><xs:attribute name="value" type="xs:double" use="required"/></xs:complexType></xs:element>
        <xs:element name="string_value"><xs:complexType><xs:attribute name="value" type="xs:string" use="required"/></xs:complexType></xs:element>
      </xs:choice>
    </xs:sequence>
    <xs:attribute name="name" type="xs:string" use="required"/>
  </xs:complexType>
  <xs:element name="options">
    <xs:complexType>
      <xs:sequence>
        <xs:element name="option" type="Option" minOccurs="0" maxOccurs="unbounded"/>
      </xs:sequence>
    </xs:complexType>
  </xs:element>
`)

	requestSchema = xmlutil.MustParseSchema(`
  <xs:complexType name="Point">
    <xs:attribute name="vertex" type="xs:long"/>
    <xs:attribute name="x" type="xs:double"/>
    <xs:attribute name="y" type="xs:double"/>
  </xs:complexType>
  <xs:complexType name="TimeConstraint">
    <xs:attribute name="type" type="xs:int" use="required"/>
    <xs:attribute name="date_time" type="xs:dateTime" use="required"/>
  </xs:complexType>
  <xs:complexType name="Step">
    <xs:sequence>
      <xs:element name="destination" type="Point"/>
      <xs:element name="constraint" type="TimeConstraint" minOccurs="0"/>
    </xs:sequence>
    <xs:attribute name="private_vehicule_at_destination" type="xs:boolean"/>
  </xs:complexType>
  <xs:element name="request">
    <xs:complexType>
      <xs:sequence>
        <xs:element name="origin" type="Point"/>
        <xs:element name="departure_constraint" type="TimeConstraint" minOccurs="0"/>
        <xs:element name="parking_location" type="Point" minOccurs="0"/>
        <xs:element name="optimizing_criterion" type="xs:int" minOccurs="1" maxOccurs="unbounded"/>
        <xs:element name="allowed_network" type="xs:long" minOccurs="0" maxOccurs="unbounded"/>
        <xs:element name="step" type="Step" minOccurs="1" maxOccurs="unbounded"/>
        <xs:element name="allowed_mode" type="xs:long" minOccurs="0" maxOccurs="unbounded"/>
      </xs:sequence>
    </xs:complexType>
  </xs:element>
`)

	pluginsSchema = xmlutil.MustParseSchema(optionValueTypes + `
  <xs:complexType name="Option">
    <xs:sequence>
      <xs:element name="default_value" type="OptionValue"/>
    </xs:sequence>
    <xs:attribute name="name" type="xs:string" use="required"/>
    <xs:attribute name="type" type="xs:string" use="required"/>
    <xs:attribute name="description" type="xs:string"/>
  </xs:complexType>
  <xs:complexType name="Plugin">
    <xs:sequence>
      <xs:element name="option" type="Option" minOccurs="0" maxOccurs="unbounded"/>
      <xs:element name="supported_criterion" type="xs:int" minOccurs="0" maxOccurs="unbounded"/>
      <xs:element name="intermediate_steps" type="xs:boolean"/>
      <xs:element name="depart_after" type="xs:boolean"/>
      <xs:element name="arrive_before" type="xs:boolean"/>
    </xs:sequence>
    <xs:attribute name="name" type="xs:string" use="required"/>
  </xs:complexType>
  <xs:element name="plugins">
    <xs:complexType>
      <xs:sequence>
        <xs:element name="plugin" type="Plugin" minOccurs="0" maxOccurs="unbounded"/>
      </xs:sequence>
    </xs:complexType>
  </xs:element>
`)

	transportModesSchema = xmlutil.MustParseSchema(`
  <xs:complexType name="TransportMode">
    <xs:attribute name="id" type="xs:long" use="required"/>
    <xs:attribute name="parent_id" type="xs:long"/>
    <xs:attribute name="name" type="xs:string" use="required"/>
    <xs:attribute name="is_public_transport" type="xs:boolean"/>
    <xs:attribute name="need_parking" type="xs:boolean"/>
    <xs:attribute name="is_shared" type="xs:boolean"/>
    <xs:attribute name="must_be_returned" type="xs:boolean"/>
  </xs:complexType>
  <xs:element name="transport_modes">
    <xs:complexType>
      <xs:sequence>
        <xs:element name="transport_mode" type="TransportMode" minOccurs="0" maxOccurs="unbounded"/>
      </xs:sequence>
    </xs:complexType>
  </xs:element>
`)

	transportNetworksSchema = xmlutil.MustParseSchema(`
  <xs:complexType name="TransportNetwork">
    <xs:attribute name="id" type="xs:long" use="required"/>
    <xs:attribute name="name" type="xs:string" use="required"/>
    <xs:attribute name="provided_transport_types" type="xs:long"/>
  </xs:complexType>
  <xs:element name="transport_networks">
    <xs:complexType>
      <xs:sequence>
        <xs:element name="transport_network" type="TransportNetwork" minOccurs="0" maxOccurs="unbounded"/>
      </xs:sequence>
    </xs:complexType>
  </xs:element>
`)

	resultsSchema = xmlutil.MustParseSchema(`
  <xs:complexType name="Cost">
    <xs:attribute name="type" type="xs:int" use="required"/>
    <xs:attribute name="value" type="xs:double" use="required"/>
  </xs:complexType>
  <xs:complexType name="RoadStep">
    <xs:sequence>
      <xs:element name="cost" type="Cost" minOccurs="0" maxOccurs="unbounded"/>
    </xs:sequence>
    <xs:attribute name="road" type="xs:string" use="required"/>
    <xs:attribute name="end_movement" type="xs:int" use="required"/>
    <xs:attribute name="transport_mode" type="xs:long" use="required"/>
    <xs:attribute name="distance_km" type="xs:double"/>
    <xs:attribute name="wkb" type="xs:string"/>
  </xs:complexType>
  <xs:complexType name="PublicTransportStep">
    <xs:sequence>
      <xs:element name="cost" type="Cost" minOccurs="0" maxOccurs="unbounded"/>
    </xs:sequence>
    <xs:attribute name="network" type="xs:string" use="required"/>
    <xs:attribute name="departure_stop" type="xs:string" use="required"/>
    <xs:attribute name="arrival_stop" type="xs:string" use="required"/>
    <xs:attribute name="route" type="xs:string"/>
    <xs:attribute name="trip_id" type="xs:long"/>
    <xs:attribute name="transport_mode" type="xs:long" use="required"/>
    <xs:attribute name="departure_time" type="xs:double"/>
    <xs:attribute name="arrival_time" type="xs:double"/>
    <xs:attribute name="wait_time" type="xs:double"/>
    <xs:attribute name="wkb" type="xs:string"/>
  </xs:complexType>
  <xs:complexType name="RoadTransportStep">
    <xs:sequence>
      <xs:element name="cost" type="Cost" minOccurs="0" maxOccurs="unbounded"/>
    </xs:sequence>
    <xs:attribute name="type" type="xs:int" use="required"/>
    <xs:attribute name="road" type="xs:string"/>
    <xs:attribute name="network" type="xs:string"/>
    <xs:attribute name="stop" type="xs:string"/>
    <xs:attribute name="transport_mode" type="xs:long" use="required"/>
    <xs:attribute name="final_mode" type="xs:long"/>
    <xs:attribute name="wkb" type="xs:string"/>
  </xs:complexType>
  <xs:complexType name="TransferStep">
    <xs:sequence>
      <xs:element name="cost" type="Cost" minOccurs="0" maxOccurs="unbounded"/>
    </xs:sequence>
    <xs:attribute name="type" type="xs:int" use="required"/>
    <xs:attribute name="road" type="xs:string"/>
    <xs:attribute name="poi" type="xs:string"/>
    <xs:attribute name="transport_mode" type="xs:long" use="required"/>
    <xs:attribute name="final_mode" type="xs:long"/>
    <xs:attribute name="wkb" type="xs:string"/>
  </xs:complexType>
  <xs:complexType name="Result">
    <xs:sequence>
      <xs:choice minOccurs="0" maxOccurs="unbounded">
        <xs:element name="road_step" type="RoadStep"/>
        <xs:element name="public_transport_step" type="PublicTransportStep"/>
        <xs:element name="road_transport_step" type="RoadTransportStep"/>
        <xs:element name="transfer_step" type="TransferStep"/>
      </xs:choice>
      <xs:element name="cost" type="Cost" minOccurs="0" maxOccurs="unbounded"/>
      <xs:element name="starting_date_time" type="xs:dateTime" minOccurs="0"/>
    </xs:sequence>
  </xs:complexType>
  <xs:element name="results">
    <xs:complexType>
      <xs:sequence>
        <xs:element name="result" type="Result" minOccurs="0" maxOccurs="unbounded"/>
      </xs:sequence>
    </xs:complexType>
  </xs:element>
`)

	metricsSchema = xmlutil.MustParseSchema(`
  <xs:element name="metrics">
    <xs:complexType>
      <xs:sequence>
        <xs:element name="metric" minOccurs="0" maxOccurs="unbounded">
          <xs:complexType>
            <xs:attribute name="name" type="xs:string" use="required"/>
            <xs:attribute name="value" type="xs:string" use="required"/>
          </xs:complexType>
        </xs:element>
      </xs:sequence>
    </xs:complexType>
  </xs:element>
`)
)
